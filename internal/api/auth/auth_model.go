package auth

import (
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// User-facing messages for the authentication endpoints. The registration
// duplicates keep the exact wording the frontend matches on for
// field-level feedback.
const (
	MsgUsernameEnUso      = "Error: El nombre de usuario ya está en uso!"
	MsgEmailEnUso         = "Error: El email ya está en uso!"
	MsgDNIRegistrado      = "Error: El DNI ya está registrado!"
	MsgCodigoEnUso        = "Error: El código ya está en uso!"
	MsgCredenciales       = "Error: Usuario o contraseña incorrectos!"
	MsgCuentaDesactivada  = "Error: La cuenta está desactivada!"
	MsgTokenGoogle        = "Error: Token de Google inválido!"
	MsgDominioNoPermitido = "Error: Solo se permiten correos institucionales!"
	MsgRegistroExitoso    = "Usuario registrado exitosamente!"
)

// LoginRequest represents the login request body.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// LoginResponse carries the bearer token together with the public profile.
type LoginResponse struct {
	Token   string        `json:"token"`
	Usuario *types.Perfil `json:"usuario"`
}

// RegisterRequest represents the registration request body. Optional fields
// are pointers so absence is distinguishable from the empty string.
type RegisterRequest struct {
	Username         string  `json:"username"`
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Nombres          string  `json:"nombres"`
	Apellidos        string  `json:"apellidos"`
	Rol              string  `json:"rol"`
	DNI              *string `json:"dni,omitempty"`
	Telefono         *string `json:"telefono,omitempty"`
	CodigoEstudiante *string `json:"codigoEstudiante,omitempty"`
	CodigoDocente    *string `json:"codigoDocente,omitempty"`
	Especialidad     *string `json:"especialidad,omitempty"`
	ProgramaInteres  *string `json:"programaInteres,omitempty"`
}

// GoogleLoginRequest carries the externally issued Google token, either an
// access token or an ID token.
type GoogleLoginRequest struct {
	GoogleToken string `json:"googleToken"`
}

// ChangePasswordRequest represents the change password request body.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
