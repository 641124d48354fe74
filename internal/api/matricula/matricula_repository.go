package matricula

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/escuela-posgrado/sistema-academico/app/observability/metrics"
	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ MatriculaRepo = (*PostgresMatriculaRepo)(nil)

type MatriculaRepo interface {
	CreatePeriodo(ctx context.Context, p *types.PeriodoMatricula) error
	ListPeriodos(ctx context.Context) ([]*types.PeriodoMatricula, error)
	GetPeriodoActivo(ctx context.Context) (*types.PeriodoMatricula, error)
	ActivarPeriodo(ctx context.Context, periodoID uuid.UUID) error
	CreateCurso(ctx context.Context, params types.CreateCursoParams) (*types.Curso, error)
	ListCursos(ctx context.Context) ([]*types.Curso, error)
	GetCursoByID(ctx context.Context, cursoID uuid.UUID) (*types.Curso, error)
}

type PostgresMatriculaRepo struct {
	logger  *slog.Logger
	pgpool  api.PGXPool
	metrics *metrics.AppMetrics
}

func NewPostgresMatriculaRepo(pgxpool api.PGXPool, logger *slog.Logger, m *metrics.AppMetrics) *PostgresMatriculaRepo {
	return &PostgresMatriculaRepo{
		logger:  logger,
		pgpool:  pgxpool,
		metrics: m,
	}
}

func (r *PostgresMatriculaRepo) CreatePeriodo(ctx context.Context, p *types.PeriodoMatricula) error {
	query := `
        INSERT INTO periodos_matricula (nombre, fecha_inicio, fecha_fin, activo)
        VALUES ($1, $2, $3, FALSE)
        RETURNING id, created_at`
	err := r.pgpool.QueryRow(ctx, query, p.Nombre, p.FechaInicio, p.FechaFin).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("database error creating enrollment period: %w", err)
	}
	p.Activo = false
	return nil
}

func (r *PostgresMatriculaRepo) ListPeriodos(ctx context.Context) ([]*types.PeriodoMatricula, error) {
	query := `
        SELECT id, nombre, fecha_inicio, fecha_fin, activo, created_at
        FROM periodos_matricula
        ORDER BY created_at DESC`
	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error listing enrollment periods: %w", err)
	}
	defer rows.Close()

	var periodos []*types.PeriodoMatricula
	for rows.Next() {
		var p types.PeriodoMatricula
		if err := rows.Scan(&p.ID, &p.Nombre, &p.FechaInicio, &p.FechaFin, &p.Activo, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning enrollment period: %w", err)
		}
		periodos = append(periodos, &p)
	}
	return periodos, rows.Err()
}

func (r *PostgresMatriculaRepo) GetPeriodoActivo(ctx context.Context) (*types.PeriodoMatricula, error) {
	query := `
        SELECT id, nombre, fecha_inicio, fecha_fin, activo, created_at
        FROM periodos_matricula
        WHERE activo = TRUE`
	var p types.PeriodoMatricula
	err := r.pgpool.QueryRow(ctx, query).
		Scan(&p.ID, &p.Nombre, &p.FechaInicio, &p.FechaFin, &p.Activo, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching active period: %w", err)
	}
	return &p, nil
}

// ActivarPeriodo flips the active flag to the given period. Deactivating the
// rest and activating the target happen in one transaction so no reader ever
// sees two active periods.
func (r *PostgresMatriculaRepo) ActivarPeriodo(ctx context.Context, periodoID uuid.UUID) (err error) {
	ctx, span := otel.Tracer("MatriculaRepo").Start(ctx, "ActivarPeriodo", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "update"),
		attribute.String("periodo.id", periodoID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.ObserveDBQuery(ctx, "periodos_matricula", "UPDATE", start, err) }()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE periodos_matricula SET activo = FALSE WHERE activo = TRUE`); err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error deactivating periods: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE periodos_matricula SET activo = TRUE WHERE id = $1`, periodoID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error activating period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "period not found")
		return types.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error committing activation: %w", err)
	}
	span.SetStatus(codes.Ok, "period activated")
	return nil
}

func (r *PostgresMatriculaRepo) CreateCurso(ctx context.Context, params types.CreateCursoParams) (*types.Curso, error) {
	query := `
        INSERT INTO cursos (codigo, nombre, programa, creditos)
        VALUES ($1, $2, $3, $4)
        RETURNING id, codigo, nombre, programa, creditos, activo, created_at`
	var c types.Curso
	err := r.pgpool.QueryRow(ctx, query, params.Codigo, params.Nombre, params.Programa, params.Creditos).
		Scan(&c.ID, &c.Codigo, &c.Nombre, &c.Programa, &c.Creditos, &c.Activo, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrDuplicateCodigo
		}
		return nil, fmt.Errorf("database error creating course: %w", err)
	}
	return &c, nil
}

func (r *PostgresMatriculaRepo) ListCursos(ctx context.Context) ([]*types.Curso, error) {
	query := `
        SELECT id, codigo, nombre, programa, creditos, activo, created_at
        FROM cursos
        WHERE activo = TRUE
        ORDER BY codigo`
	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error listing courses: %w", err)
	}
	defer rows.Close()

	var cursos []*types.Curso
	for rows.Next() {
		var c types.Curso
		if err := rows.Scan(&c.ID, &c.Codigo, &c.Nombre, &c.Programa, &c.Creditos, &c.Activo, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning course: %w", err)
		}
		cursos = append(cursos, &c)
	}
	return cursos, rows.Err()
}

func (r *PostgresMatriculaRepo) GetCursoByID(ctx context.Context, cursoID uuid.UUID) (*types.Curso, error) {
	query := `
        SELECT id, codigo, nombre, programa, creditos, activo, created_at
        FROM cursos
        WHERE id = $1`
	var c types.Curso
	err := r.pgpool.QueryRow(ctx, query, cursoID).
		Scan(&c.ID, &c.Codigo, &c.Nombre, &c.Programa, &c.Creditos, &c.Activo, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching course: %w", err)
	}
	return &c, nil
}
