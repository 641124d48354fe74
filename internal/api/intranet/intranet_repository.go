package intranet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ IntranetRepo = (*PostgresIntranetRepo)(nil)

// IntranetRepo persists attendance and grade records.
type IntranetRepo interface {
	// RegistrarAsistencia upserts the attendance state for one student,
	// course and day.
	RegistrarAsistencia(ctx context.Context, a *types.Asistencia) error
	ListAsistencias(ctx context.Context, estudianteID, cursoID uuid.UUID) ([]*types.Asistencia, error)
	ResumenAsistencia(ctx context.Context, estudianteID, cursoID uuid.UUID) (*types.ResumenAsistencia, error)

	// RegistrarNota upserts the grade for one student, course and
	// evaluation type.
	RegistrarNota(ctx context.Context, n *types.Nota) error
	ListNotas(ctx context.Context, estudianteID, cursoID uuid.UUID) ([]*types.Nota, error)
	PromedioNotas(ctx context.Context, estudianteID, cursoID uuid.UUID) (*types.PromedioNotas, error)

	// GetUsuarioIDByUsername resolves the caller's row id for self-service
	// checks.
	GetUsuarioIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
}

type PostgresIntranetRepo struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresIntranetRepo(pgpool api.PGXPool, logger *slog.Logger) *PostgresIntranetRepo {
	return &PostgresIntranetRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresIntranetRepo) RegistrarAsistencia(ctx context.Context, a *types.Asistencia) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	// Re-registering the same day corrects the previous state.
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO asistencias (id, estudiante_id, curso_id, fecha, estado, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT ON CONSTRAINT uq_asistencias_dia DO UPDATE SET estado = EXCLUDED.estado`,
		a.ID, a.EstudianteID, a.CursoID, a.Fecha, a.Estado, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("registrar asistencia: %w", err)
	}
	return nil
}

func (r *PostgresIntranetRepo) ListAsistencias(ctx context.Context, estudianteID, cursoID uuid.UUID) ([]*types.Asistencia, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, estudiante_id, curso_id, fecha, estado, created_at
         FROM asistencias WHERE estudiante_id = $1 AND curso_id = $2
         ORDER BY fecha`, estudianteID, cursoID)
	if err != nil {
		return nil, fmt.Errorf("list asistencias: %w", err)
	}
	defer rows.Close()

	var asistencias []*types.Asistencia
	for rows.Next() {
		var a types.Asistencia
		if err := rows.Scan(&a.ID, &a.EstudianteID, &a.CursoID, &a.Fecha, &a.Estado, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asistencia: %w", err)
		}
		asistencias = append(asistencias, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list asistencias: %w", err)
	}
	return asistencias, nil
}

// ResumenAsistencia aggregates in SQL; tardiness counts as attended.
func (r *PostgresIntranetRepo) ResumenAsistencia(ctx context.Context, estudianteID, cursoID uuid.UUID) (*types.ResumenAsistencia, error) {
	resumen := &types.ResumenAsistencia{
		EstudianteID: estudianteID,
		CursoID:      cursoID,
	}
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*),
                COUNT(*) FILTER (WHERE estado IN ('PRESENTE', 'TARDANZA'))
         FROM asistencias WHERE estudiante_id = $1 AND curso_id = $2`,
		estudianteID, cursoID).Scan(&resumen.Total, &resumen.Asistidas)
	if err != nil {
		return nil, fmt.Errorf("resumen asistencia: %w", err)
	}
	if resumen.Total > 0 {
		resumen.Porcentaje = float64(resumen.Asistidas) / float64(resumen.Total) * 100
	}
	return resumen, nil
}

func (r *PostgresIntranetRepo) RegistrarNota(ctx context.Context, n *types.Nota) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO notas (id, estudiante_id, curso_id, tipo, nota, peso, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         ON CONFLICT ON CONSTRAINT uq_notas_tipo DO UPDATE SET nota = EXCLUDED.nota, peso = EXCLUDED.peso`,
		n.ID, n.EstudianteID, n.CursoID, n.Tipo, n.Nota, n.Peso, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("registrar nota: %w", err)
	}
	return nil
}

func (r *PostgresIntranetRepo) ListNotas(ctx context.Context, estudianteID, cursoID uuid.UUID) ([]*types.Nota, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, estudiante_id, curso_id, tipo, nota, peso, created_at
         FROM notas WHERE estudiante_id = $1 AND curso_id = $2
         ORDER BY created_at`, estudianteID, cursoID)
	if err != nil {
		return nil, fmt.Errorf("list notas: %w", err)
	}
	defer rows.Close()

	var notas []*types.Nota
	for rows.Next() {
		var n types.Nota
		if err := rows.Scan(&n.ID, &n.EstudianteID, &n.CursoID, &n.Tipo, &n.Nota, &n.Peso, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan nota: %w", err)
		}
		notas = append(notas, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notas: %w", err)
	}
	return notas, nil
}

func (r *PostgresIntranetRepo) PromedioNotas(ctx context.Context, estudianteID, cursoID uuid.UUID) (*types.PromedioNotas, error) {
	promedio := &types.PromedioNotas{
		EstudianteID: estudianteID,
		CursoID:      cursoID,
	}
	err := r.pgpool.QueryRow(ctx,
		`SELECT COALESCE(SUM(nota * peso) / NULLIF(SUM(peso), 0), 0),
                COALESCE(SUM(peso), 0)
         FROM notas WHERE estudiante_id = $1 AND curso_id = $2`,
		estudianteID, cursoID).Scan(&promedio.Promedio, &promedio.PesoTotal)
	if err != nil {
		return nil, fmt.Errorf("promedio notas: %w", err)
	}
	return promedio, nil
}

func (r *PostgresIntranetRepo) GetUsuarioIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`SELECT id FROM usuarios WHERE username = $1
         ORDER BY activo DESC LIMIT 1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, types.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup usuario id: %w", err)
	}
	return id, nil
}
