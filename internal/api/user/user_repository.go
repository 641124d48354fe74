package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user administration persistence.
type UserRepo interface {
	// ListActive returns non-deleted users, optionally filtered by role.
	ListActive(ctx context.Context, rol *types.Rol) ([]*types.Usuario, error)

	// GetByID retrieves a user regardless of activo, so administrators can
	// inspect deactivated accounts.
	GetByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error)

	// UpdatePerfil applies the non-nil fields of params.
	UpdatePerfil(ctx context.Context, userID uuid.UUID, params types.UpdatePerfilParams) error

	// SetActivo flips the soft-delete marker.
	SetActivo(ctx context.Context, userID uuid.UUID, activo bool) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresUserRepo(pgpool api.PGXPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const usuarioColumns = `id, username, email, password_hash, nombres, apellidos, dni, telefono,
       rol, activo, codigo_estudiante, codigo_docente, especialidad, programa_interes,
       ultimo_acceso, created_at`

func scanUsuarioRow(row pgx.Row) (*types.Usuario, error) {
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

func (r *PostgresUserRepo) ListActive(ctx context.Context, rol *types.Rol) ([]*types.Usuario, error) {
	query := `SELECT ` + usuarioColumns + ` FROM usuarios WHERE activo`
	var args []interface{}
	if rol != nil {
		query += ` AND rol = $1`
		args = append(args, *rol)
	}
	query += ` ORDER BY apellidos, nombres`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list usuarios: %w", err)
	}
	defer rows.Close()

	var usuarios []*types.Usuario
	for rows.Next() {
		u, err := scanUsuarioRow(rows)
		if err != nil {
			return nil, err
		}
		usuarios = append(usuarios, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list usuarios: %w", err)
	}
	return usuarios, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, userID)
	return scanUsuarioRow(row)
}

func (r *PostgresUserRepo) UpdatePerfil(ctx context.Context, userID uuid.UUID, params types.UpdatePerfilParams) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdatePerfil", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "usuarios"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var setClauses []string
	var args []interface{}
	argID := 1

	if params.Nombres != nil {
		setClauses = append(setClauses, fmt.Sprintf("nombres = $%d", argID))
		args = append(args, *params.Nombres)
		argID++
	}
	if params.Apellidos != nil {
		setClauses = append(setClauses, fmt.Sprintf("apellidos = $%d", argID))
		args = append(args, *params.Apellidos)
		argID++
	}
	if params.Telefono != nil {
		setClauses = append(setClauses, fmt.Sprintf("telefono = $%d", argID))
		args = append(args, *params.Telefono)
		argID++
	}
	if params.Especialidad != nil {
		setClauses = append(setClauses, fmt.Sprintf("especialidad = $%d", argID))
		args = append(args, *params.Especialidad)
		argID++
	}
	if params.ProgramaInteres != nil {
		setClauses = append(setClauses, fmt.Sprintf("programa_interes = $%d", argID))
		args = append(args, *params.ProgramaInteres)
		argID++
	}

	if len(setClauses) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE usuarios SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argID)
	args = append(args, userID)

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update perfil: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetActivo(ctx context.Context, userID uuid.UUID, activo bool) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE usuarios SET activo = $1 WHERE id = $2`, activo, userID)
	if err != nil {
		return fmt.Errorf("set activo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
