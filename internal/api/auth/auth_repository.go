package auth

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
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/escuela-posgrado/sistema-academico/app/observability/metrics"
	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential-store contract. The existence probes are a fast
// path for friendlier errors; the partial unique indexes on usuarios are the
// real arbiter and their violations are translated by CreateUser.
type AuthRepo interface {
	GetUserByUsernameOrEmail(ctx context.Context, login string) (*types.Usuario, error)
	GetUserByUsername(ctx context.Context, username string) (*types.Usuario, error)
	GetUserByEmail(ctx context.Context, email string) (*types.Usuario, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error)
	CreateUser(ctx context.Context, u *types.Usuario) error
	UpdateUltimoAcceso(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error
	UpdateNombres(ctx context.Context, userID uuid.UUID, nombres, apellidos string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	DNIExists(ctx context.Context, dni string) (bool, error)
	CodigoEstudianteExists(ctx context.Context, codigo string) (bool, error)
	CodigoDocenteExists(ctx context.Context, codigo string) (bool, error)
	CountByRol(ctx context.Context, rol types.Rol) (int, error)
}

type PostgresAuthRepo struct {
	logger  *slog.Logger
	pgpool  api.PGXPool
	metrics *metrics.AppMetrics
}

func NewPostgresAuthRepo(pgpool api.PGXPool, logger *slog.Logger, m *metrics.AppMetrics) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger:  logger,
		pgpool:  pgpool,
		metrics: m,
	}
}

const usuarioColumns = `id, username, email, password_hash, nombres, apellidos, dni, telefono,
       rol, activo, codigo_estudiante, codigo_docente, especialidad, programa_interes,
       ultimo_acceso, created_at`

func scanUsuario(row pgx.Row) (*types.Usuario, error) {
	var u types.Usuario
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Nombres, &u.Apellidos,
		&u.DNI, &u.Telefono, &u.Rol, &u.Activo, &u.CodigoEstudiante, &u.CodigoDocente,
		&u.Especialidad, &u.ProgramaInteres, &u.UltimoAcceso, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan usuario: %w", err)
	}
	return &u, nil
}

// translateUniqueViolation maps a postgres unique violation to the
// per-field duplicate error matching the violated index.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_usuarios_username":
		return types.ErrDuplicateUsername
	case "uq_usuarios_email":
		return types.ErrDuplicateEmail
	case "uq_usuarios_dni":
		return types.ErrDuplicateDNI
	case "uq_usuarios_codigo_estudiante", "uq_usuarios_codigo_docente":
		return types.ErrDuplicateCodigo
	}
	return fmt.Errorf("%w: %s", types.ErrConflict, pgErr.ConstraintName)
}

// GetUserByUsernameOrEmail resolves a login identifier against both unique
// columns. The partial unique indexes let a new active account reuse a
// soft-deleted account's username or email, so the active row wins the
// lookup when both exist.
func (r *PostgresAuthRepo) GetUserByUsernameOrEmail(ctx context.Context, login string) (*types.Usuario, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByUsernameOrEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "usuarios"),
	))
	defer span.End()

	start := time.Now()
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE (username = $1 OR email = $1)
         ORDER BY activo DESC LIMIT 1`,
		login)
	u, err := scanUsuario(row)
	r.metrics.ObserveDBQuery(ctx, "usuarios", "SELECT", start, err)
	return u, err
}

func (r *PostgresAuthRepo) GetUserByUsername(ctx context.Context, username string) (*types.Usuario, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE username = $1
         ORDER BY activo DESC LIMIT 1`, username)
	return scanUsuario(row)
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.Usuario, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE email = $1
         ORDER BY activo DESC LIMIT 1`, email)
	return scanUsuario(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, userID)
	return scanUsuario(row)
}

// CreateUser inserts the user, relying on the unique indexes as the final
// arbiter for concurrent duplicates.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, u *types.Usuario) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "usuarios"),
	))
	defer span.End()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Activo = true

	start := time.Now()
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO usuarios (id, username, email, password_hash, nombres, apellidos, dni, telefono,
                       rol, activo, codigo_estudiante, codigo_docente, especialidad, programa_interes, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Username, u.Email, u.Password, u.Nombres, u.Apellidos, u.DNI, u.Telefono,
		u.Rol, u.Activo, u.CodigoEstudiante, u.CodigoDocente, u.Especialidad, u.ProgramaInteres, u.CreatedAt)
	r.metrics.ObserveDBQuery(ctx, "usuarios", "INSERT", start, err)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdateUltimoAcceso(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE usuarios SET ultimo_acceso = $1 WHERE id = $2`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update ultimo_acceso: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE usuarios SET password_hash = $1 WHERE id = $2`, newHashedPassword, userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// UpdateNombres backfills the name fields; used by the linking flow when the
// local record lacks them.
func (r *PostgresAuthRepo) UpdateNombres(ctx context.Context, userID uuid.UUID, nombres, apellidos string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE usuarios SET nombres = $1, apellidos = $2 WHERE id = $3`, nombres, apellidos, userID)
	if err != nil {
		return fmt.Errorf("update nombres: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) exists(ctx context.Context, query, value string) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, query, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE username = $1 AND activo)`, username)
}

func (r *PostgresAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE email = $1 AND activo)`, email)
}

func (r *PostgresAuthRepo) DNIExists(ctx context.Context, dni string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE dni = $1 AND activo)`, dni)
}

func (r *PostgresAuthRepo) CodigoEstudianteExists(ctx context.Context, codigo string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE codigo_estudiante = $1 AND activo)`, codigo)
}

func (r *PostgresAuthRepo) CodigoDocenteExists(ctx context.Context, codigo string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE codigo_docente = $1 AND activo)`, codigo)
}

func (r *PostgresAuthRepo) CountByRol(ctx context.Context, rol types.Rol) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usuarios WHERE rol = $1`, rol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by rol: %w", err)
	}
	return count, nil
}
