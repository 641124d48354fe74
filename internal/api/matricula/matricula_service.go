package matricula

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

const cursosCacheKey = "cursos:activos"

var _ MatriculaService = (*MatriculaServiceImpl)(nil)

type MatriculaService interface {
	CreatePeriodo(ctx context.Context, p *types.PeriodoMatricula) error
	ListPeriodos(ctx context.Context) ([]*types.PeriodoMatricula, error)
	GetPeriodoActivo(ctx context.Context) (*types.PeriodoMatricula, error)
	ActivarPeriodo(ctx context.Context, periodoID uuid.UUID) error
	CreateCurso(ctx context.Context, params types.CreateCursoParams) (*types.Curso, error)
	ListCursos(ctx context.Context) ([]*types.Curso, error)
	GetCurso(ctx context.Context, cursoID uuid.UUID) (*types.Curso, error)
}

type MatriculaServiceImpl struct {
	logger *slog.Logger
	repo   MatriculaRepo
	cache  *cache.Cache
}

// NewMatriculaServiceImpl wires the repository behind a short-lived course
// catalog cache. The catalog changes rarely and is read on every enrollment
// screen, so stale reads up to cacheTTL are acceptable.
func NewMatriculaServiceImpl(repo MatriculaRepo, cacheTTL time.Duration, logger *slog.Logger) *MatriculaServiceImpl {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &MatriculaServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (s *MatriculaServiceImpl) CreatePeriodo(ctx context.Context, p *types.PeriodoMatricula) error {
	l := s.logger.With(slog.String("method", "CreatePeriodo"))
	if p.Nombre == "" {
		return &types.ValidationError{Message: "Error: El nombre del periodo es requerido!"}
	}
	if !p.FechaFin.After(p.FechaInicio) {
		return &types.ValidationError{Message: "Error: La fecha de fin debe ser posterior a la fecha de inicio!"}
	}
	if err := s.repo.CreatePeriodo(ctx, p); err != nil {
		return err
	}
	l.InfoContext(ctx, "Enrollment period created", slog.String("nombre", p.Nombre))
	return nil
}

func (s *MatriculaServiceImpl) ListPeriodos(ctx context.Context) ([]*types.PeriodoMatricula, error) {
	return s.repo.ListPeriodos(ctx)
}

func (s *MatriculaServiceImpl) GetPeriodoActivo(ctx context.Context) (*types.PeriodoMatricula, error) {
	return s.repo.GetPeriodoActivo(ctx)
}

func (s *MatriculaServiceImpl) ActivarPeriodo(ctx context.Context, periodoID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "ActivarPeriodo"))
	if err := s.repo.ActivarPeriodo(ctx, periodoID); err != nil {
		return err
	}
	l.InfoContext(ctx, "Enrollment period activated", slog.String("periodoID", periodoID.String()))
	return nil
}

func (s *MatriculaServiceImpl) CreateCurso(ctx context.Context, params types.CreateCursoParams) (*types.Curso, error) {
	if params.Codigo == "" || params.Nombre == "" {
		return nil, &types.ValidationError{Message: "Error: Código y nombre del curso son requeridos!"}
	}
	if params.Creditos < 0 {
		return nil, &types.ValidationError{Message: "Error: Los créditos no pueden ser negativos!"}
	}
	curso, err := s.repo.CreateCurso(ctx, params)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(cursosCacheKey)
	return curso, nil
}

func (s *MatriculaServiceImpl) ListCursos(ctx context.Context) ([]*types.Curso, error) {
	if cached, found := s.cache.Get(cursosCacheKey); found {
		if cursos, ok := cached.([]*types.Curso); ok {
			return cursos, nil
		}
	}
	cursos, err := s.repo.ListCursos(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cursosCacheKey, cursos, cache.DefaultExpiration)
	return cursos, nil
}

func (s *MatriculaServiceImpl) GetCurso(ctx context.Context, cursoID uuid.UUID) (*types.Curso, error) {
	return s.repo.GetCursoByID(ctx, cursoID)
}
