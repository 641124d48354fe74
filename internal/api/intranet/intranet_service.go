package intranet

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ IntranetService = (*IntranetServiceImpl)(nil)

// Caller is the identity resolved by the access-control gate, threaded
// explicitly into read operations so students only see their own records.
type Caller struct {
	Username string
	Rol      types.Rol
}

func (c Caller) isStaff() bool {
	switch c.Rol {
	case types.RolAdmin, types.RolCoordinador, types.RolDocente:
		return true
	}
	return false
}

// IntranetService defines attendance and grade record-keeping operations.
type IntranetService interface {
	RegistrarAsistencia(ctx context.Context, a *types.Asistencia) error
	ListAsistencias(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) ([]*types.Asistencia, error)
	ResumenAsistencia(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) (*types.ResumenAsistencia, error)
	RegistrarNota(ctx context.Context, n *types.Nota) error
	ListNotas(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) ([]*types.Nota, error)
	PromedioNotas(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) (*types.PromedioNotas, error)
}

type IntranetServiceImpl struct {
	logger *slog.Logger
	repo   IntranetRepo
}

func NewIntranetService(repo IntranetRepo, logger *slog.Logger) *IntranetServiceImpl {
	return &IntranetServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// checkSelf lets staff through and requires everyone else to be reading
// their own records.
func (s *IntranetServiceImpl) checkSelf(ctx context.Context, caller Caller, estudianteID uuid.UUID) error {
	if caller.isStaff() {
		return nil
	}
	ownID, err := s.repo.GetUsuarioIDByUsername(ctx, caller.Username)
	if err != nil {
		return err
	}
	if ownID != estudianteID {
		return types.ErrForbidden
	}
	return nil
}

func (s *IntranetServiceImpl) RegistrarAsistencia(ctx context.Context, a *types.Asistencia) error {
	if !a.Estado.Valid() {
		return &types.ValidationError{Message: "Error: Estado de asistencia no válido!"}
	}
	if a.EstudianteID == uuid.Nil || a.CursoID == uuid.Nil {
		return &types.ValidationError{Message: "Error: Estudiante y curso son requeridos!"}
	}
	return s.repo.RegistrarAsistencia(ctx, a)
}

func (s *IntranetServiceImpl) ListAsistencias(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) ([]*types.Asistencia, error) {
	if err := s.checkSelf(ctx, caller, estudianteID); err != nil {
		return nil, err
	}
	return s.repo.ListAsistencias(ctx, estudianteID, cursoID)
}

func (s *IntranetServiceImpl) ResumenAsistencia(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) (*types.ResumenAsistencia, error) {
	if err := s.checkSelf(ctx, caller, estudianteID); err != nil {
		return nil, err
	}
	return s.repo.ResumenAsistencia(ctx, estudianteID, cursoID)
}

func (s *IntranetServiceImpl) RegistrarNota(ctx context.Context, n *types.Nota) error {
	if n.Nota < 0 || n.Nota > 20 {
		return &types.ValidationError{Message: "Error: La nota debe estar entre 0 y 20!"}
	}
	if n.Peso <= 0 {
		return &types.ValidationError{Message: "Error: El peso debe ser mayor que cero!"}
	}
	if n.Tipo == "" {
		return &types.ValidationError{Message: "Error: El tipo de evaluación es requerido!"}
	}
	if n.EstudianteID == uuid.Nil || n.CursoID == uuid.Nil {
		return &types.ValidationError{Message: "Error: Estudiante y curso son requeridos!"}
	}
	return s.repo.RegistrarNota(ctx, n)
}

func (s *IntranetServiceImpl) ListNotas(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) ([]*types.Nota, error) {
	if err := s.checkSelf(ctx, caller, estudianteID); err != nil {
		return nil, err
	}
	return s.repo.ListNotas(ctx, estudianteID, cursoID)
}

func (s *IntranetServiceImpl) PromedioNotas(ctx context.Context, caller Caller, estudianteID, cursoID uuid.UUID) (*types.PromedioNotas, error) {
	if err := s.checkSelf(ctx, caller, estudianteID); err != nil {
		return nil, err
	}
	return s.repo.PromedioNotas(ctx, estudianteID, cursoID)
}
