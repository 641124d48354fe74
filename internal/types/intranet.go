package types

import (
	"time"

	"github.com/google/uuid"
)

// EstadoAsistencia enumerates the attendance outcome for one session.
type EstadoAsistencia string

const (
	AsistenciaPresente EstadoAsistencia = "PRESENTE"
	AsistenciaTardanza EstadoAsistencia = "TARDANZA"
	AsistenciaFalta    EstadoAsistencia = "FALTA"
)

// Valid reports whether e is a known attendance state.
func (e EstadoAsistencia) Valid() bool {
	switch e {
	case AsistenciaPresente, AsistenciaTardanza, AsistenciaFalta:
		return true
	}
	return false
}

// Asistencia is one attendance record for a student in a course.
type Asistencia struct {
	ID           uuid.UUID        `json:"id"`
	EstudianteID uuid.UUID        `json:"estudianteId"`
	CursoID      uuid.UUID        `json:"cursoId"`
	Fecha        time.Time        `json:"fecha"`
	Estado       EstadoAsistencia `json:"estado"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// ResumenAsistencia aggregates a student's attendance in a course.
// Tardiness counts as attended.
type ResumenAsistencia struct {
	EstudianteID uuid.UUID `json:"estudianteId"`
	CursoID      uuid.UUID `json:"cursoId"`
	Total        int       `json:"total"`
	Asistidas    int       `json:"asistidas"`
	Porcentaje   float64   `json:"porcentaje"`
}

// Nota is a weighted grade entry for a student in a course. Nota is on the
// 0-20 vigesimal scale.
type Nota struct {
	ID           uuid.UUID `json:"id"`
	EstudianteID uuid.UUID `json:"estudianteId"`
	CursoID      uuid.UUID `json:"cursoId"`
	Tipo         string    `json:"tipo"`
	Nota         float64   `json:"nota"`
	Peso         float64   `json:"peso"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PromedioNotas is the weighted average of a student's grades in a course.
type PromedioNotas struct {
	EstudianteID uuid.UUID `json:"estudianteId"`
	CursoID      uuid.UUID `json:"cursoId"`
	Promedio     float64   `json:"promedio"`
	PesoTotal    float64   `json:"pesoTotal"`
}
