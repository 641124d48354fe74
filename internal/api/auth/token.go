package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/escuela-posgrado/sistema-academico/config"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Claims embeds the caller's identity and role into the signed token.
// Validity is determined purely by signature and embedded timestamps; there
// is no server-side session table and no revocation list, so deactivating an
// account does not invalidate tokens issued before the deactivation.
type Claims struct {
	Username string    `json:"username"`
	Rol      types.Rol `json:"rol"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and validates HMAC-signed bearer tokens.
type TokenIssuer struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
}

func NewTokenIssuer(cfg config.JWTConfig) (*TokenIssuer, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is not configured")
	}
	expiry := cfg.Expiry
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &TokenIssuer{
		secretKey: []byte(cfg.SecretKey),
		expiry:    expiry,
		issuer:    cfg.Issuer,
	}, nil
}

// Issue creates a signed token asserting username and role for the
// configured validity window.
func (t *TokenIssuer) Issue(username string, rol types.Rol) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Rol:      rol,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses the token string and returns its claims, or
// ErrTokenExpired/ErrTokenInvalid.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if !claims.Rol.Valid() {
		return nil, fmt.Errorf("%w: unknown role claim", ErrTokenInvalid)
	}
	return claims, nil
}
