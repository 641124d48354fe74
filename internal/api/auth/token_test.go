package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/escuela-posgrado/sistema-academico/config"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey: "test-secret-key",
		Expiry:    time.Hour,
		Issuer:    "test-issuer",
	}
}

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	issuer, err := NewTokenIssuer(testJWTConfig())
	assert.NoError(t, err)

	token, err := issuer.Issue("jperez", types.RolEstudiante)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, "jperez", claims.Username)
	assert.Equal(t, types.RolEstudiante, claims.Rol)
	assert.Equal(t, "test-issuer", claims.Issuer)
}

func TestTokenIssuer_RejectsEmptySecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.SecretKey = ""
	_, err := NewTokenIssuer(cfg)
	assert.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Expiry = -time.Minute
	issuer, err := NewTokenIssuer(cfg)
	assert.NoError(t, err)

	token, err := issuer.Issue("jperez", types.RolEstudiante)
	assert.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer(testJWTConfig())
	assert.NoError(t, err)
	token, err := issuer.Issue("jperez", types.RolEstudiante)
	assert.NoError(t, err)

	otherCfg := testJWTConfig()
	otherCfg.SecretKey = "a-different-secret"
	other, err := NewTokenIssuer(otherCfg)
	assert.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_Garbage(t *testing.T) {
	issuer, err := NewTokenIssuer(testJWTConfig())
	assert.NoError(t, err)

	_, err = issuer.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
