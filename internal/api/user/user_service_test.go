package user

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// MockUserRepo is a mock implementation of the UserRepo interface
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) ListActive(ctx context.Context, rol *types.Rol) ([]*types.Usuario, error) {
	args := m.Called(ctx, rol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Usuario), args.Error(1)
}

func (m *MockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.Usuario, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Usuario), args.Error(1)
}

func (m *MockUserRepo) UpdatePerfil(ctx context.Context, userID uuid.UUID, params types.UpdatePerfilParams) error {
	args := m.Called(ctx, userID, params)
	return args.Error(0)
}

func (m *MockUserRepo) SetActivo(ctx context.Context, userID uuid.UUID, activo bool) error {
	args := m.Called(ctx, userID, activo)
	return args.Error(0)
}

func estudiante(username string) *types.Usuario {
	return &types.Usuario{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@unap.edu.pe",
		Rol:      types.RolEstudiante,
		Activo:   true,
	}
}

func TestGetUsuario(t *testing.T) {
	t.Run("SelfRead", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()

		perfil, err := service.GetUsuario(ctx, Caller{Username: "jperez", Rol: types.RolEstudiante}, u.ID)

		assert.NoError(t, err)
		assert.Equal(t, "jperez", perfil.Username)
		mockRepo.AssertExpectations(t)
	})

	t.Run("StaffReadsOthers", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()

		perfil, err := service.GetUsuario(ctx, Caller{Username: "admin.epg", Rol: types.RolCoordinador}, u.ID)

		assert.NoError(t, err)
		assert.Equal(t, "jperez", perfil.Username)
	})

	t.Run("NonStaffCannotReadOthers", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()

		_, err := service.GetUsuario(ctx, Caller{Username: "otro", Rol: types.RolEstudiante}, u.ID)

		assert.ErrorIs(t, err, types.ErrForbidden)
	})
}

func TestUpdatePerfil(t *testing.T) {
	t.Run("SelfUpdate", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")
		telefono := "951234567"
		params := types.UpdatePerfilParams{Telefono: &telefono}

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()
		mockRepo.On("UpdatePerfil", ctx, u.ID, params).Return(nil).Once()

		err := service.UpdatePerfil(ctx, Caller{Username: "jperez", Rol: types.RolEstudiante}, u.ID, params)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("CoordinadorCannotUpdateOthers", func(t *testing.T) {
		// Only ADMIN edits other people's profiles; COORDINADOR can read
		// but not write.
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()

		err := service.UpdatePerfil(ctx, Caller{Username: "coord", Rol: types.RolCoordinador}, u.ID, types.UpdatePerfilParams{})

		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("AdminUpdatesOthers", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, slog.Default())
		ctx := context.Background()
		u := estudiante("jperez")
		params := types.UpdatePerfilParams{}

		mockRepo.On("GetByID", ctx, u.ID).Return(u, nil).Once()
		mockRepo.On("UpdatePerfil", ctx, u.ID, params).Return(nil).Once()

		err := service.UpdatePerfil(ctx, Caller{Username: "admin.epg", Rol: types.RolAdmin}, u.ID, params)

		assert.NoError(t, err)
	})
}

func TestDesactivarActivar(t *testing.T) {
	mockRepo := new(MockUserRepo)
	service := NewUserService(mockRepo, slog.Default())
	ctx := context.Background()
	userID := uuid.New()

	mockRepo.On("SetActivo", ctx, userID, false).Return(nil).Once()
	mockRepo.On("SetActivo", ctx, userID, true).Return(nil).Once()

	assert.NoError(t, service.Desactivar(ctx, userID))
	assert.NoError(t, service.Activar(ctx, userID))
	mockRepo.AssertExpectations(t)
}
