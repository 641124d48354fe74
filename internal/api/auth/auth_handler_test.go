package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// MockAuthService is a mock implementation of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, usernameOrEmail, password string) (string, *types.Perfil, error) {
	args := m.Called(ctx, usernameOrEmail, password)
	var perfil *types.Perfil
	if args.Get(1) != nil {
		perfil = args.Get(1).(*types.Perfil)
	}
	return args.String(0), perfil, args.Error(2)
}

func (m *MockAuthService) Register(ctx context.Context, req RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockAuthService) LoginWithGoogle(ctx context.Context, rawToken string) (string, *types.Perfil, error) {
	args := m.Called(ctx, rawToken)
	var perfil *types.Perfil
	if args.Get(1) != nil {
		perfil = args.Get(1).(*types.Perfil)
	}
	return args.String(0), perfil, args.Error(2)
}

func (m *MockAuthService) GetOrCreateUserFromGoogle(ctx context.Context, providerUser goth.User) (*types.Usuario, error) {
	args := m.Called(ctx, providerUser)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockAuthService) GetPerfil(ctx context.Context, username string) (*types.Perfil, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Perfil), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	args := m.Called(ctx, username, oldPassword, newPassword)
	return args.Error(0)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) api.Response {
	t.Helper()
	var resp api.Response
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())
		perfil := &types.Perfil{Username: "jperez", Rol: types.RolEstudiante}

		mockService.On("Login", mock.Anything, "jperez", "password123").
			Return("a.jwt.token", perfil, nil).Once()

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{
			UsernameOrEmail: "jperez",
			Password:        "password123",
		})

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp LoginResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "a.jwt.token", resp.Token)
		assert.Equal(t, "jperez", resp.Usuario.Username)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Login", mock.Anything, "jperez", "bad").
			Return("", nil, types.ErrInvalidCredentials).Once()

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{
			UsernameOrEmail: "jperez",
			Password:        "bad",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.False(t, resp.Success)
		assert.Equal(t, MsgCredenciales, resp.Message)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Login")
	})

	t.Run("DisabledAccount", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Login", mock.Anything, "jperez", "password123").
			Return("", nil, types.ErrAccountDisabled).Once()

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{
			UsernameOrEmail: "jperez",
			Password:        "password123",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, MsgCuentaDesactivada, resp.Message)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterRequest")).
			Return(nil).Once()

		rr := postJSON(t, handler.Register, "/api/auth/registro", RegisterRequest{
			Username: "newuser",
			Email:    "new@unap.edu.pe",
			Password: "password123",
		})

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeResponse(t, rr)
		assert.True(t, resp.Success)
		assert.Equal(t, MsgRegistroExitoso, resp.Message)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterRequest")).
			Return(types.ErrDuplicateUsername).Once()

		rr := postJSON(t, handler.Register, "/api/auth/registro", RegisterRequest{
			Username: "jperez",
			Email:    "jperez@unap.edu.pe",
			Password: "password123",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, "Error: El nombre de usuario ya está en uso!", resp.Message)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterRequest")).
			Return(types.ErrDuplicateEmail).Once()

		rr := postJSON(t, handler.Register, "/api/auth/registro", RegisterRequest{
			Username: "jperez",
			Email:    "jperez@unap.edu.pe",
			Password: "password123",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, MsgEmailEnUso, resp.Message)
	})

	t.Run("ValidationMessagePassesThrough", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterRequest")).
			Return(&types.ValidationError{Message: "Error: El DNI debe tener 8 dígitos!"}).Once()

		rr := postJSON(t, handler.Register, "/api/auth/registro", RegisterRequest{
			Username: "jperez",
			Email:    "jperez@unap.edu.pe",
			Password: "password123",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, "Error: El DNI debe tener 8 dígitos!", resp.Message)
	})
}

func TestAuthHandler_GoogleLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())
		perfil := &types.Perfil{Username: "jperez", Rol: types.RolEstudiante}

		mockService.On("LoginWithGoogle", mock.Anything, "raw-google-token").
			Return("a.jwt.token", perfil, nil).Once()

		rr := postJSON(t, handler.GoogleLogin, "/api/auth/google-login", GoogleLoginRequest{
			GoogleToken: "raw-google-token",
		})

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp LoginResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "a.jwt.token", resp.Token)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("LoginWithGoogle", mock.Anything, "bad").
			Return("", nil, types.ErrInvalidExternalToken).Once()

		rr := postJSON(t, handler.GoogleLogin, "/api/auth/google-login", GoogleLoginRequest{GoogleToken: "bad"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, MsgTokenGoogle, resp.Message)
	})

	t.Run("DomainRejected", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("LoginWithGoogle", mock.Anything, "raw").
			Return("", nil, types.ErrDomainNotAllowed).Once()

		rr := postJSON(t, handler.GoogleLogin, "/api/auth/google-login", GoogleLoginRequest{GoogleToken: "raw"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, MsgDominioNoPermitido, resp.Message)
	})

	t.Run("ProviderUnavailable", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("LoginWithGoogle", mock.Anything, "raw").
			Return("", nil, types.ErrExternalService).Once()

		rr := postJSON(t, handler.GoogleLogin, "/api/auth/google-login", GoogleLoginRequest{GoogleToken: "raw"})

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		rr := postJSON(t, handler.GoogleLogin, "/api/auth/google-login", GoogleLoginRequest{})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "LoginWithGoogle")
	})
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())
		perfil := &types.Perfil{Username: "jperez", Rol: types.RolEstudiante}

		mockService.On("GetPerfil", mock.Anything, "jperez").Return(perfil, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		ctx := context.WithValue(req.Context(), UsernameKey, "jperez")
		rr := httptest.NewRecorder()
		handler.Me(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got types.Perfil
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "jperez", got.Username)
	})

	t.Run("NoIdentity", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		rr := httptest.NewRecorder()
		handler.Me(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		mockService.AssertNotCalled(t, "GetPerfil")
	})
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	t.Run("WrongCurrentPassword", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandlerImpl(mockService, slog.Default())

		mockService.On("ChangePassword", mock.Anything, "jperez", "old", "newpassword").
			Return(types.ErrInvalidCredentials).Once()

		payload, _ := json.Marshal(ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
		req := httptest.NewRequest(http.MethodPut, "/api/auth/password", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		ctx := context.WithValue(req.Context(), UsernameKey, "jperez")
		rr := httptest.NewRecorder()
		handler.ChangePassword(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr)
		assert.Equal(t, "Error: La contraseña actual es incorrecta!", resp.Message)
	})
}
