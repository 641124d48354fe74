package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ AuthHandler = (*AuthHandlerImpl)(nil)

type AuthHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	Register(w http.ResponseWriter, r *http.Request)
	GoogleLogin(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Validate(w http.ResponseWriter, r *http.Request)
	ChangePassword(w http.ResponseWriter, r *http.Request)
}

type AuthHandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *AuthHandlerImpl {
	return &AuthHandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary      Login
// @Description  Authenticates a username-or-email/password pair and returns a bearer token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} api.Response
// @Router       /auth/login [post]
func (h *AuthHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Usuario y contraseña son requeridos!")
		return
	}

	token, perfil, err := h.authService.Login(ctx, req.UsernameOrEmail, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidCredentials):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgCredenciales)
		case errors.Is(err, types.ErrAccountDisabled):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgCuentaDesactivada)
		default:
			l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{Token: token, Usuario: perfil})
}

// Register godoc
// @Summary      Register
// @Description  Creates a new account. Duplicate username/email/DNI/code are reported per field.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Registration fields"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response
// @Router       /auth/registro [post]
func (h *AuthHandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.Register(ctx, req); err != nil {
		var validationErr *types.ValidationError
		switch {
		case errors.As(err, &validationErr):
			api.ErrorResponse(w, r, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, types.ErrDuplicateUsername):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgUsernameEnUso)
		case errors.Is(err, types.ErrDuplicateEmail):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgEmailEnUso)
		case errors.Is(err, types.ErrDuplicateDNI):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgDNIRegistrado)
		case errors.Is(err, types.ErrDuplicateCodigo):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgCodigoEnUso)
		default:
			l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	api.MessageResponse(w, r, http.StatusOK, MsgRegistroExitoso)
}

// GoogleLogin godoc
// @Summary      Google login
// @Description  Exchanges a Google access or ID token for a local session, creating the account on first login.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body GoogleLoginRequest true "Google token"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} api.Response
// @Router       /auth/google-login [post]
func (h *AuthHandlerImpl) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GoogleLogin"))

	var req GoogleLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.GoogleToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Error: El token de Google es requerido!")
		return
	}

	token, perfil, err := h.authService.LoginWithGoogle(ctx, req.GoogleToken)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidExternalToken):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgTokenGoogle)
		case errors.Is(err, types.ErrDomainNotAllowed):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgDominioNoPermitido)
		case errors.Is(err, types.ErrAccountDisabled):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgCuentaDesactivada)
		case errors.Is(err, types.ErrExternalService):
			l.ErrorContext(ctx, "Google provider error", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadGateway, "Error: No se pudo verificar el token de Google")
		default:
			l.ErrorContext(ctx, "Google login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{Token: token, Usuario: perfil})
}

// Me godoc
// @Summary      Current profile
// @Description  Returns the authenticated caller's public profile.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.Perfil
// @Failure      401 {object} api.Response
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Me"))

	username, ok := GetUsernameFromContext(ctx)
	if !ok || username == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	perfil, err := h.authService.GetPerfil(ctx, username)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Usuario no encontrado!")
		case errors.Is(err, types.ErrAccountDisabled):
			api.ErrorResponse(w, r, http.StatusBadRequest, MsgCuentaDesactivada)
		default:
			l.ErrorContext(ctx, "Failed to load profile", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, perfil)
}

// Validate godoc
// @Summary      Validate token
// @Description  Confirms the bearer token is valid; the middleware already did the work.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} api.Response
// @Failure      401 {object} api.Response
// @Security     BearerAuth
// @Router       /auth/validate [get]
func (h *AuthHandlerImpl) Validate(w http.ResponseWriter, r *http.Request) {
	api.MessageResponse(w, r, http.StatusOK, "Token válido")
}

// ChangePassword godoc
// @Summary      Change own password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ChangePasswordRequest true "Passwords"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response
// @Security     BearerAuth
// @Router       /auth/password [put]
func (h *AuthHandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ChangePassword"))

	username, ok := GetUsernameFromContext(ctx)
	if !ok || username == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ChangePassword(ctx, username, req.OldPassword, req.NewPassword); err != nil {
		var validationErr *types.ValidationError
		switch {
		case errors.As(err, &validationErr):
			api.ErrorResponse(w, r, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, types.ErrInvalidCredentials):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Error: La contraseña actual es incorrecta!")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Error: Usuario no encontrado!")
		default:
			l.ErrorContext(ctx, "Failed to change password", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	api.MessageResponse(w, r, http.StatusOK, "Contraseña actualizada exitosamente!")
}
