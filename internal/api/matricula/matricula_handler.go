package matricula

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreatePeriodo(w http.ResponseWriter, r *http.Request)
	ListPeriodos(w http.ResponseWriter, r *http.Request)
	GetPeriodoActivo(w http.ResponseWriter, r *http.Request)
	ActivarPeriodo(w http.ResponseWriter, r *http.Request)
	CreateCurso(w http.ResponseWriter, r *http.Request)
	ListCursos(w http.ResponseWriter, r *http.Request)
	GetCurso(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service MatriculaService
	logger  *slog.Logger
}

func NewHandlerImpl(service MatriculaService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

type createPeriodoRequest struct {
	Nombre      string `json:"nombre"`
	FechaInicio string `json:"fechaInicio"`
	FechaFin    string `json:"fechaFin"`
}

func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	var validationErr *types.ValidationError
	switch {
	case errors.As(err, &validationErr):
		api.ErrorResponse(w, r, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, types.ErrDuplicateCodigo):
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: El código del curso ya está en uso!")
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Error: Registro no encontrado!")
	default:
		h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
	}
}

// CreatePeriodo godoc
// @Summary      Create an enrollment period
// @Tags         Matricula
// @Accept       json
// @Produce      json
// @Success      201 {object} types.PeriodoMatricula
// @Security     BearerAuth
// @Router       /matricula/periodos [post]
func (h *HandlerImpl) CreatePeriodo(w http.ResponseWriter, r *http.Request) {
	var req createPeriodoRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inicio, err := time.Parse("2006-01-02", req.FechaInicio)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: La fecha de inicio debe tener formato YYYY-MM-DD!")
		return
	}
	fin, err := time.Parse("2006-01-02", req.FechaFin)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: La fecha de fin debe tener formato YYYY-MM-DD!")
		return
	}

	periodo := &types.PeriodoMatricula{
		Nombre:      req.Nombre,
		FechaInicio: inicio,
		FechaFin:    fin,
	}
	if err := h.service.CreatePeriodo(r.Context(), periodo); err != nil {
		h.writeError(w, r, err, "Failed to create enrollment period")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, periodo)
}

// ListPeriodos godoc
// @Summary      List enrollment periods
// @Tags         Matricula
// @Produce      json
// @Success      200 {array} types.PeriodoMatricula
// @Security     BearerAuth
// @Router       /matricula/periodos [get]
func (h *HandlerImpl) ListPeriodos(w http.ResponseWriter, r *http.Request) {
	periodos, err := h.service.ListPeriodos(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to list enrollment periods")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, periodos)
}

// GetPeriodoActivo godoc
// @Summary      Fetch the currently active enrollment period
// @Tags         Matricula
// @Produce      json
// @Success      200 {object} types.PeriodoMatricula
// @Security     BearerAuth
// @Router       /matricula/periodos/activo [get]
func (h *HandlerImpl) GetPeriodoActivo(w http.ResponseWriter, r *http.Request) {
	periodo, err := h.service.GetPeriodoActivo(r.Context())
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Error: No hay periodo de matrícula activo!")
			return
		}
		h.writeError(w, r, err, "Failed to fetch active period")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, periodo)
}

// ActivarPeriodo godoc
// @Summary      Activate an enrollment period, deactivating the rest
// @Tags         Matricula
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /matricula/periodos/{id}/activar [put]
func (h *HandlerImpl) ActivarPeriodo(w http.ResponseWriter, r *http.Request) {
	periodoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Identificador de periodo no válido!")
		return
	}
	if err := h.service.ActivarPeriodo(r.Context(), periodoID); err != nil {
		h.writeError(w, r, err, "Failed to activate enrollment period")
		return
	}
	api.MessageResponse(w, r, http.StatusOK, "Periodo de matrícula activado exitosamente!")
}

// CreateCurso godoc
// @Summary      Register a catalog course
// @Tags         Matricula
// @Accept       json
// @Produce      json
// @Success      201 {object} types.Curso
// @Security     BearerAuth
// @Router       /matricula/cursos [post]
func (h *HandlerImpl) CreateCurso(w http.ResponseWriter, r *http.Request) {
	var params types.CreateCursoParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	curso, err := h.service.CreateCurso(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err, "Failed to create course")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, curso)
}

// ListCursos godoc
// @Summary      List active catalog courses
// @Tags         Matricula
// @Produce      json
// @Success      200 {array} types.Curso
// @Security     BearerAuth
// @Router       /matricula/cursos [get]
func (h *HandlerImpl) ListCursos(w http.ResponseWriter, r *http.Request) {
	cursos, err := h.service.ListCursos(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to list courses")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, cursos)
}

// GetCurso godoc
// @Summary      Fetch one catalog course
// @Tags         Matricula
// @Produce      json
// @Success      200 {object} types.Curso
// @Security     BearerAuth
// @Router       /matricula/cursos/{id} [get]
func (h *HandlerImpl) GetCurso(w http.ResponseWriter, r *http.Request) {
	cursoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Identificador de curso no válido!")
		return
	}
	curso, err := h.service.GetCurso(r.Context(), cursoID)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch course")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, curso)
}
