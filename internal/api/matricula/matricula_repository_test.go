package matricula

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresMatriculaRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewPostgresMatriculaRepo(mockPool, slog.Default(), nil)
}

func TestActivarPeriodo_SingleActiveInvariant(t *testing.T) {
	mockPool, repo := newMockRepo(t)
	periodoID := uuid.New()

	// Deactivate-then-activate inside one transaction.
	mockPool.ExpectBegin()
	mockPool.ExpectExec(`UPDATE periodos_matricula SET activo = FALSE WHERE activo = TRUE`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`UPDATE periodos_matricula SET activo = TRUE WHERE id = \$1`).
		WithArgs(periodoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	err := repo.ActivarPeriodo(context.Background(), periodoID)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestActivarPeriodo_UnknownPeriodRollsBack(t *testing.T) {
	mockPool, repo := newMockRepo(t)
	periodoID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectExec(`UPDATE periodos_matricula SET activo = FALSE WHERE activo = TRUE`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`UPDATE periodos_matricula SET activo = TRUE WHERE id = \$1`).
		WithArgs(periodoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectRollback()

	err := repo.ActivarPeriodo(context.Background(), periodoID)

	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetPeriodoActivo_None(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	mockPool.ExpectQuery(`SELECT .+ FROM periodos_matricula\s+WHERE activo = TRUE`).
		WillReturnRows(mockPool.NewRows([]string{"id"}))

	_, err := repo.GetPeriodoActivo(context.Background())

	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateCurso_DuplicateCodigo(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	mockPool.ExpectQuery(`INSERT INTO cursos`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_cursos_codigo"})

	_, err := repo.CreateCurso(context.Background(), types.CreateCursoParams{
		Codigo: "MAT-501",
		Nombre: "Matemática Avanzada",
	})

	assert.ErrorIs(t, err, types.ErrDuplicateCodigo)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
