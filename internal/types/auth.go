package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared across services. Handlers translate these into the
// uniform {message, success} response body with the right HTTP status.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")

	ErrDuplicateUsername   = errors.New("username already in use")
	ErrDuplicateEmail      = errors.New("email already in use")
	ErrDuplicateDNI        = errors.New("dni already in use")
	ErrDuplicateCodigo     = errors.New("codigo already in use")
	ErrInvalidExternalToken = errors.New("invalid external identity token")
	ErrDomainNotAllowed     = errors.New("email domain not allowed")
	ErrExternalService      = errors.New("external identity provider error")
)

// ValidationError reports malformed or missing input with a message meant
// for the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Rol is the coarse permission tag used for endpoint-level access decisions.
type Rol string

const (
	RolAdmin       Rol = "ADMIN"
	RolCoordinador Rol = "COORDINADOR"
	RolDocente     Rol = "DOCENTE"
	RolEstudiante  Rol = "ESTUDIANTE"
	RolPostulante  Rol = "POSTULANTE"
)

// Roles lists every valid role value.
var Roles = []Rol{RolAdmin, RolCoordinador, RolDocente, RolEstudiante, RolPostulante}

// Valid reports whether r is one of the known role values.
func (r Rol) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Usuario is the credential-store entity. Password holds the bcrypt hash and
// is never serialized.
type Usuario struct {
	ID               uuid.UUID  `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Password         string     `json:"-"`
	Nombres          string     `json:"nombres"`
	Apellidos        string     `json:"apellidos"`
	DNI              *string    `json:"dni,omitempty"`
	Telefono         *string    `json:"telefono,omitempty"`
	Rol              Rol        `json:"rol"`
	Activo           bool       `json:"activo"`
	CodigoEstudiante *string    `json:"codigoEstudiante,omitempty"`
	CodigoDocente    *string    `json:"codigoDocente,omitempty"`
	Especialidad     *string    `json:"especialidad,omitempty"`
	ProgramaInteres  *string    `json:"programaInteres,omitempty"`
	UltimoAcceso     *time.Time `json:"ultimoAcceso,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Perfil is the outward projection of a Usuario returned by login and
// profile endpoints.
type Perfil struct {
	ID               uuid.UUID  `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Nombres          string     `json:"nombres"`
	Apellidos        string     `json:"apellidos"`
	Rol              Rol        `json:"rol"`
	CodigoEstudiante *string    `json:"codigoEstudiante,omitempty"`
	CodigoDocente    *string    `json:"codigoDocente,omitempty"`
	Especialidad     *string    `json:"especialidad,omitempty"`
	ProgramaInteres  *string    `json:"programaInteres,omitempty"`
	UltimoAcceso     *time.Time `json:"ultimoAcceso,omitempty"`
}

// PerfilDe builds the public projection for u.
func PerfilDe(u *Usuario) *Perfil {
	return &Perfil{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Nombres:          u.Nombres,
		Apellidos:        u.Apellidos,
		Rol:              u.Rol,
		CodigoEstudiante: u.CodigoEstudiante,
		CodigoDocente:    u.CodigoDocente,
		Especialidad:     u.Especialidad,
		ProgramaInteres:  u.ProgramaInteres,
		UltimoAcceso:     u.UltimoAcceso,
	}
}

// UpdatePerfilParams carries the mutable profile fields; nil means "leave".
type UpdatePerfilParams struct {
	Nombres         *string `json:"nombres,omitempty"`
	Apellidos       *string `json:"apellidos,omitempty"`
	Telefono        *string `json:"telefono,omitempty"`
	Especialidad    *string `json:"especialidad,omitempty"`
	ProgramaInteres *string `json:"programaInteres,omitempty"`
}
