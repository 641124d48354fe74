package user

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// Caller is the identity the access-control gate resolved for the current
// request. It is passed explicitly into every operation that needs a
// self-or-admin decision.
type Caller struct {
	Username string
	Rol      types.Rol
}

func (c Caller) isStaff() bool {
	return c.Rol == types.RolAdmin || c.Rol == types.RolCoordinador
}

// UserService defines user administration operations.
type UserService interface {
	ListUsuarios(ctx context.Context, rol *types.Rol) ([]*types.Perfil, error)
	GetUsuario(ctx context.Context, caller Caller, userID uuid.UUID) (*types.Perfil, error)
	UpdatePerfil(ctx context.Context, caller Caller, userID uuid.UUID, params types.UpdatePerfilParams) error
	Desactivar(ctx context.Context, userID uuid.UUID) error
	Activar(ctx context.Context, userID uuid.UUID) error
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *UserServiceImpl) ListUsuarios(ctx context.Context, rol *types.Rol) ([]*types.Perfil, error) {
	usuarios, err := s.repo.ListActive(ctx, rol)
	if err != nil {
		return nil, err
	}
	perfiles := make([]*types.Perfil, 0, len(usuarios))
	for _, u := range usuarios {
		perfiles = append(perfiles, types.PerfilDe(u))
	}
	return perfiles, nil
}

// GetUsuario enforces the self-or-staff rule: non-staff callers may only
// read their own record.
func (s *UserServiceImpl) GetUsuario(ctx context.Context, caller Caller, userID uuid.UUID) (*types.Perfil, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.isStaff() && u.Username != caller.Username {
		return nil, types.ErrForbidden
	}
	return types.PerfilDe(u), nil
}

func (s *UserServiceImpl) UpdatePerfil(ctx context.Context, caller Caller, userID uuid.UUID, params types.UpdatePerfilParams) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if caller.Rol != types.RolAdmin && u.Username != caller.Username {
		return types.ErrForbidden
	}
	return s.repo.UpdatePerfil(ctx, userID, params)
}

// Desactivar soft-deletes the account. Tokens already issued to the user
// stay valid until they expire; there is no revocation list.
func (s *UserServiceImpl) Desactivar(ctx context.Context, userID uuid.UUID) error {
	s.logger.InfoContext(ctx, "Deactivating user", slog.String("userID", userID.String()))
	return s.repo.SetActivo(ctx, userID, false)
}

func (s *UserServiceImpl) Activar(ctx context.Context, userID uuid.UUID) error {
	s.logger.InfoContext(ctx, "Reactivating user", slog.String("userID", userID.String()))
	return s.repo.SetActivo(ctx, userID, true)
}
