package types

import (
	"time"

	"github.com/google/uuid"
)

// PeriodoMatricula is an enrollment window. At most one period is active at
// any time; activating one deactivates the rest.
type PeriodoMatricula struct {
	ID          uuid.UUID `json:"id"`
	Nombre      string    `json:"nombre"`
	FechaInicio time.Time `json:"fechaInicio"`
	FechaFin    time.Time `json:"fechaFin"`
	Activo      bool      `json:"activo"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Curso is a catalog entry. Codigo is unique across the catalog.
type Curso struct {
	ID        uuid.UUID `json:"id"`
	Codigo    string    `json:"codigo"`
	Nombre    string    `json:"nombre"`
	Programa  string    `json:"programa"`
	Creditos  int       `json:"creditos"`
	Activo    bool      `json:"activo"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCursoParams carries the fields needed to register a catalog course.
type CreateCursoParams struct {
	Codigo   string `json:"codigo"`
	Nombre   string `json:"nombre"`
	Programa string `json:"programa"`
	Creditos int    `json:"creditos"`
}
