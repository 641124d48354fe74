package intranet

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/api/auth"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	RegistrarAsistencia(w http.ResponseWriter, r *http.Request)
	ListAsistencias(w http.ResponseWriter, r *http.Request)
	ResumenAsistencia(w http.ResponseWriter, r *http.Request)
	RegistrarNota(w http.ResponseWriter, r *http.Request)
	ListNotas(w http.ResponseWriter, r *http.Request)
	PromedioNotas(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service IntranetService
	logger  *slog.Logger
}

func NewHandlerImpl(service IntranetService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

type registrarAsistenciaRequest struct {
	EstudianteID uuid.UUID `json:"estudianteId"`
	CursoID      uuid.UUID `json:"cursoId"`
	Fecha        string    `json:"fecha"`
	Estado       string    `json:"estado"`
}

type registrarNotaRequest struct {
	EstudianteID uuid.UUID `json:"estudianteId"`
	CursoID      uuid.UUID `json:"cursoId"`
	Tipo         string    `json:"tipo"`
	Nota         float64   `json:"nota"`
	Peso         float64   `json:"peso"`
}

func callerFromContext(r *http.Request) (Caller, bool) {
	username, okU := auth.GetUsernameFromContext(r.Context())
	rol, okR := auth.GetRoleFromContext(r.Context())
	return Caller{Username: username, Rol: rol}, okU && okR
}

// studentCourseParams reads the estudianteId/cursoId query pair shared by
// the read endpoints.
func studentCourseParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	estudianteID, err := uuid.Parse(r.URL.Query().Get("estudianteId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("Error: estudianteId no válido!")
	}
	cursoID, err := uuid.Parse(r.URL.Query().Get("cursoId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("Error: cursoId no válido!")
	}
	return estudianteID, cursoID, nil
}

func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	var validationErr *types.ValidationError
	switch {
	case errors.As(err, &validationErr):
		api.ErrorResponse(w, r, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, types.ErrForbidden):
		api.ErrorResponse(w, r, http.StatusForbidden, "Acceso denegado")
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Error: Registro no encontrado!")
	default:
		h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
	}
}

// RegistrarAsistencia godoc
// @Summary      Register attendance for one session
// @Tags         Intranet
// @Accept       json
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /intranet/asistencias [post]
func (h *HandlerImpl) RegistrarAsistencia(w http.ResponseWriter, r *http.Request) {
	var req registrarAsistenciaRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	fecha, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: La fecha debe tener formato YYYY-MM-DD!")
		return
	}

	a := &types.Asistencia{
		EstudianteID: req.EstudianteID,
		CursoID:      req.CursoID,
		Fecha:        fecha,
		Estado:       types.EstadoAsistencia(req.Estado),
	}
	if err := h.service.RegistrarAsistencia(r.Context(), a); err != nil {
		h.writeError(w, r, err, "Failed to register attendance")
		return
	}
	api.MessageResponse(w, r, http.StatusOK, "Asistencia registrada exitosamente!")
}

// ListAsistencias godoc
// @Summary      List attendance records for a student in a course
// @Tags         Intranet
// @Produce      json
// @Success      200 {array} types.Asistencia
// @Security     BearerAuth
// @Router       /intranet/asistencias [get]
func (h *HandlerImpl) ListAsistencias(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	estudianteID, cursoID, err := studentCourseParams(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	asistencias, err := h.service.ListAsistencias(r.Context(), caller, estudianteID, cursoID)
	if err != nil {
		h.writeError(w, r, err, "Failed to list attendance")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, asistencias)
}

// ResumenAsistencia godoc
// @Summary      Attendance percentage summary
// @Tags         Intranet
// @Produce      json
// @Success      200 {object} types.ResumenAsistencia
// @Security     BearerAuth
// @Router       /intranet/asistencias/resumen [get]
func (h *HandlerImpl) ResumenAsistencia(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	estudianteID, cursoID, err := studentCourseParams(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resumen, err := h.service.ResumenAsistencia(r.Context(), caller, estudianteID, cursoID)
	if err != nil {
		h.writeError(w, r, err, "Failed to summarize attendance")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resumen)
}

// RegistrarNota godoc
// @Summary      Register or correct a grade
// @Tags         Intranet
// @Accept       json
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /intranet/notas [post]
func (h *HandlerImpl) RegistrarNota(w http.ResponseWriter, r *http.Request) {
	var req registrarNotaRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	n := &types.Nota{
		EstudianteID: req.EstudianteID,
		CursoID:      req.CursoID,
		Tipo:         req.Tipo,
		Nota:         req.Nota,
		Peso:         req.Peso,
	}
	if err := h.service.RegistrarNota(r.Context(), n); err != nil {
		h.writeError(w, r, err, "Failed to register grade")
		return
	}
	api.MessageResponse(w, r, http.StatusOK, "Nota registrada exitosamente!")
}

// ListNotas godoc
// @Summary      List grades for a student in a course
// @Tags         Intranet
// @Produce      json
// @Success      200 {array} types.Nota
// @Security     BearerAuth
// @Router       /intranet/notas [get]
func (h *HandlerImpl) ListNotas(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	estudianteID, cursoID, err := studentCourseParams(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	notas, err := h.service.ListNotas(r.Context(), caller, estudianteID, cursoID)
	if err != nil {
		h.writeError(w, r, err, "Failed to list grades")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, notas)
}

// PromedioNotas godoc
// @Summary      Weighted grade average
// @Tags         Intranet
// @Produce      json
// @Success      200 {object} types.PromedioNotas
// @Security     BearerAuth
// @Router       /intranet/notas/promedio [get]
func (h *HandlerImpl) PromedioNotas(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	estudianteID, cursoID, err := studentCourseParams(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	promedio, err := h.service.PromedioNotas(r.Context(), caller, estudianteID, cursoID)
	if err != nil {
		h.writeError(w, r, err, "Failed to compute grade average")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, promedio)
}
