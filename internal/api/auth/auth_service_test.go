package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/escuela-posgrado/sistema-academico/config"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// MockAuthRepo is a mock implementation of the AuthRepo interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByUsernameOrEmail(ctx context.Context, login string) (*types.Usuario, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockAuthRepo) GetUserByUsername(ctx context.Context, username string) (*types.Usuario, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.Usuario, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, u *types.Usuario) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdateUltimoAcceso(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error {
	args := m.Called(ctx, userID, newHashedPassword)
	return args.Error(0)
}

func (m *MockAuthRepo) UpdateNombres(ctx context.Context, userID uuid.UUID, nombres, apellidos string) error {
	args := m.Called(ctx, userID, nombres, apellidos)
	return args.Error(0)
}

func (m *MockAuthRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) DNIExists(ctx context.Context, dni string) (bool, error) {
	args := m.Called(ctx, dni)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) CodigoEstudianteExists(ctx context.Context, codigo string) (bool, error) {
	args := m.Called(ctx, codigo)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) CodigoDocenteExists(ctx context.Context, codigo string) (bool, error) {
	args := m.Called(ctx, codigo)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthRepo) CountByRol(ctx context.Context, rol types.Rol) (int, error) {
	args := m.Called(ctx, rol)
	return args.Int(0), args.Error(1)
}

// MockGoogleVerifier is a mock implementation of the GoogleVerifier interface
type MockGoogleVerifier struct {
	mock.Mock
}

func (m *MockGoogleVerifier) Verify(ctx context.Context, rawToken string) (goth.User, error) {
	args := m.Called(ctx, rawToken)
	return args.Get(0).(goth.User), args.Error(1)
}

func testGoogleConfig() config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:       "test-client-id",
		AllowedDomains: []string{"unap.edu.pe", "epgunap.edu.pe"},
		VerifyTimeout:  5 * time.Second,
	}
}

func newTestService(t *testing.T, repo AuthRepo, verifier GoogleVerifier) *AuthServiceImpl {
	t.Helper()
	tokens, err := NewTokenIssuer(testJWTConfig())
	assert.NoError(t, err)
	return NewAuthService(repo, tokens, verifier, testGoogleConfig(), slog.Default(), nil)
}

func activeUser(username, email, password string, rol types.Rol) *types.Usuario {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return &types.Usuario{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		Password: string(hashed),
		Rol:      rol,
		Activo:   true,
	}
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "password123", types.RolEstudiante)

		mockRepo.On("GetUserByUsernameOrEmail", ctx, "jperez").Return(user, nil).Once()
		mockRepo.On("UpdateUltimoAcceso", ctx, user.ID).Return(nil).Once()

		token, perfil, err := service.Login(ctx, "jperez", "password123")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "jperez", perfil.Username)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()

		mockRepo.On("GetUserByUsernameOrEmail", ctx, "ghost").Return(nil, types.ErrNotFound).Once()

		token, perfil, err := service.Login(ctx, "ghost", "password123")

		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		assert.Empty(t, token)
		assert.Nil(t, perfil)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "correctpassword", types.RolEstudiante)

		mockRepo.On("GetUserByUsernameOrEmail", ctx, "jperez").Return(user, nil).Once()

		token, _, err := service.Login(ctx, "jperez", "wrongpassword")

		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		assert.Empty(t, token)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DeactivatedAccount", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "password123", types.RolEstudiante)
		user.Activo = false

		mockRepo.On("GetUserByUsernameOrEmail", ctx, "jperez").Return(user, nil).Once()

		_, _, err := service.Login(ctx, "jperez", "password123")

		// Rejected before the password compare, so disabled never looks
		// like bad-password.
		assert.ErrorIs(t, err, types.ErrAccountDisabled)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UltimoAccesoFailureIsNotFatal", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "password123", types.RolEstudiante)

		mockRepo.On("GetUserByUsernameOrEmail", ctx, "jperez").Return(user, nil).Once()
		mockRepo.On("UpdateUltimoAcceso", ctx, user.ID).Return(assert.AnError).Once()

		token, _, err := service.Login(ctx, "jperez", "password123")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		mockRepo.AssertExpectations(t)
	})
}

func TestRegister(t *testing.T) {
	validRequest := func() RegisterRequest {
		dni := "12345678"
		return RegisterRequest{
			Username:  "newuser",
			Email:     "new@unap.edu.pe",
			Password:  "password123",
			Nombres:   "Nuevo",
			Apellidos: "Usuario",
			DNI:       &dni,
		}
	}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		req := validRequest()

		mockRepo.On("UsernameExists", ctx, "newuser").Return(false, nil).Once()
		mockRepo.On("EmailExists", ctx, "new@unap.edu.pe").Return(false, nil).Once()
		mockRepo.On("DNIExists", ctx, "12345678").Return(false, nil).Once()
		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(u *types.Usuario) bool {
			return u.Username == "newuser" && u.Rol == types.RolEstudiante && u.Password != "password123"
		})).Return(nil).Once()

		err := service.Register(ctx, req)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()

		mockRepo.On("UsernameExists", ctx, "newuser").Return(true, nil).Once()

		err := service.Register(ctx, validRequest())

		assert.ErrorIs(t, err, types.ErrDuplicateUsername)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()

		mockRepo.On("UsernameExists", ctx, "newuser").Return(false, nil).Once()
		mockRepo.On("EmailExists", ctx, "new@unap.edu.pe").Return(true, nil).Once()

		err := service.Register(ctx, validRequest())

		assert.ErrorIs(t, err, types.ErrDuplicateEmail)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MixedCaseDuplicateEmail", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		req := validRequest()
		req.Email = "New@UNAP.edu.pe"

		mockRepo.On("UsernameExists", ctx, "newuser").Return(false, nil).Once()
		mockRepo.On("EmailExists", ctx, "new@unap.edu.pe").Return(true, nil).Once()

		err := service.Register(ctx, req)

		assert.ErrorIs(t, err, types.ErrDuplicateEmail)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		req := validRequest()
		req.Password = "abc"

		err := service.Register(context.Background(), req)

		var validationErr *types.ValidationError
		assert.ErrorAs(t, err, &validationErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("BadDNI", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		req := validRequest()
		bad := "12ab5678"
		req.DNI = &bad

		err := service.Register(context.Background(), req)

		var validationErr *types.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("InvalidRol", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		req := validRequest()
		req.Rol = "SUPERUSUARIO"

		err := service.Register(context.Background(), req)

		var validationErr *types.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("StorageArbiterWins", func(t *testing.T) {
		// Pre-checks pass but the unique index still fires: the translated
		// error surfaces unchanged.
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()

		mockRepo.On("UsernameExists", ctx, "newuser").Return(false, nil).Once()
		mockRepo.On("EmailExists", ctx, "new@unap.edu.pe").Return(false, nil).Once()
		mockRepo.On("DNIExists", ctx, "12345678").Return(false, nil).Once()
		mockRepo.On("CreateUser", ctx, mock.Anything).Return(types.ErrDuplicateUsername).Once()

		err := service.Register(ctx, validRequest())

		assert.ErrorIs(t, err, types.ErrDuplicateUsername)
		mockRepo.AssertExpectations(t)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "oldpassword", types.RolEstudiante)

		mockRepo.On("GetUserByUsername", ctx, "jperez").Return(user, nil).Once()
		mockRepo.On("UpdatePassword", ctx, user.ID, mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpassword")) == nil
		})).Return(nil).Once()

		err := service.ChangePassword(ctx, "jperez", "oldpassword", "newpassword")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongOldPassword", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "oldpassword", types.RolEstudiante)

		mockRepo.On("GetUserByUsername", ctx, "jperez").Return(user, nil).Once()

		err := service.ChangePassword(ctx, "jperez", "not-the-old-one", "newpassword")

		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})
}

func TestGetPerfil(t *testing.T) {
	t.Run("DeactivatedAccount", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := newTestService(t, mockRepo, nil)
		ctx := context.Background()
		user := activeUser("jperez", "jperez@unap.edu.pe", "password123", types.RolEstudiante)
		user.Activo = false

		mockRepo.On("GetUserByUsername", ctx, "jperez").Return(user, nil).Once()

		_, err := service.GetPerfil(ctx, "jperez")

		assert.ErrorIs(t, err, types.ErrAccountDisabled)
		mockRepo.AssertExpectations(t)
	})
}
