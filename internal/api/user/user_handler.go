package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/api/auth"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsuarios(w http.ResponseWriter, r *http.Request)
	GetUsuario(w http.ResponseWriter, r *http.Request)
	UpdateUsuario(w http.ResponseWriter, r *http.Request)
	Desactivar(w http.ResponseWriter, r *http.Request)
	Activar(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

func callerFromContext(r *http.Request) (Caller, bool) {
	username, okU := auth.GetUsernameFromContext(r.Context())
	rol, okR := auth.GetRoleFromContext(r.Context())
	return Caller{Username: username, Rol: rol}, okU && okR
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// ListUsuarios godoc
// @Summary      List active users
// @Description  Lists non-deleted users, optionally filtered with ?rol=.
// @Tags         Usuarios
// @Produce      json
// @Success      200 {array} types.Perfil
// @Security     BearerAuth
// @Router       /usuarios [get]
func (h *HandlerImpl) ListUsuarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListUsuarios"))

	var rol *types.Rol
	if raw := r.URL.Query().Get("rol"); raw != "" {
		parsed := types.Rol(raw)
		if !parsed.Valid() {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Rol no válido!")
			return
		}
		rol = &parsed
	}

	perfiles, err := h.userService.ListUsuarios(ctx, rol)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, perfiles)
}

// GetUsuario godoc
// @Summary      Get a user profile
// @Description  Self-service for regular users; staff may read anyone.
// @Tags         Usuarios
// @Produce      json
// @Success      200 {object} types.Perfil
// @Failure      403 {object} api.Response
// @Failure      404 {object} api.Response
// @Security     BearerAuth
// @Router       /usuarios/{id} [get]
func (h *HandlerImpl) GetUsuario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetUsuario"))

	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: ID de usuario no válido!")
		return
	}

	perfil, err := h.userService.GetUsuario(ctx, caller, userID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Error: Usuario no encontrado!")
		case errors.Is(err, types.ErrForbidden):
			api.ErrorResponse(w, r, http.StatusForbidden, "Acceso denegado")
		default:
			l.ErrorContext(ctx, "Failed to get user", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, perfil)
}

// UpdateUsuario godoc
// @Summary      Update profile fields
// @Tags         Usuarios
// @Accept       json
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /usuarios/{id} [put]
func (h *HandlerImpl) UpdateUsuario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateUsuario"))

	caller, ok := callerFromContext(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: ID de usuario no válido!")
		return
	}

	var params types.UpdatePerfilParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.UpdatePerfil(ctx, caller, userID, params); err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Error: Usuario no encontrado!")
		case errors.Is(err, types.ErrForbidden):
			api.ErrorResponse(w, r, http.StatusForbidden, "Acceso denegado")
		default:
			l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}
	api.MessageResponse(w, r, http.StatusOK, "Usuario actualizado exitosamente!")
}

// Desactivar godoc
// @Summary      Soft-delete a user
// @Tags         Usuarios
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /usuarios/{id}/desactivar [put]
func (h *HandlerImpl) Desactivar(w http.ResponseWriter, r *http.Request) {
	h.setActivo(w, r, false, "Usuario desactivado exitosamente!")
}

// Activar godoc
// @Summary      Reactivate a user
// @Tags         Usuarios
// @Produce      json
// @Success      200 {object} api.Response
// @Security     BearerAuth
// @Router       /usuarios/{id}/activar [put]
func (h *HandlerImpl) Activar(w http.ResponseWriter, r *http.Request) {
	h.setActivo(w, r, true, "Usuario activado exitosamente!")
}

func (h *HandlerImpl) setActivo(w http.ResponseWriter, r *http.Request, activo bool, successMsg string) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "setActivo"))

	userID, err := parseUserID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: ID de usuario no válido!")
		return
	}

	if activo {
		err = h.userService.Activar(ctx, userID)
	} else {
		err = h.userService.Desactivar(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Error: Usuario no encontrado!")
			return
		}
		l.ErrorContext(ctx, "Failed to toggle activo", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	api.MessageResponse(w, r, http.StatusOK, successMsg)
}
