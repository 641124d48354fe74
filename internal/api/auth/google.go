package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/markbates/goth"
	"golang.org/x/oauth2"

	"github.com/escuela-posgrado/sistema-academico/config"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

const googleIssuerURL = "https://accounts.google.com"

// GoogleVerifier exchanges an externally issued Google token for verified
// identity attributes.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (goth.User, error)
}

// verifyStrategy is one way of interpreting the opaque token. The
// strategies are tried in order until one succeeds or all are exhausted.
type verifyStrategy interface {
	name() string
	verify(ctx context.Context, rawToken string) (goth.User, error)
}

var _ GoogleVerifier = (*GoogleTokenVerifier)(nil)

// GoogleTokenVerifier tries access-token verification against the userinfo
// endpoint first, then falls back to ID-token verification. Both calls go
// out to Google and run under a bounded timeout.
type GoogleTokenVerifier struct {
	logger     *slog.Logger
	strategies []verifyStrategy
	timeout    time.Duration
}

// NewGoogleTokenVerifier discovers the Google OIDC endpoints and builds the
// ordered strategy list.
func NewGoogleTokenVerifier(ctx context.Context, cfg config.GoogleConfig, logger *slog.Logger) (*GoogleTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover Google OIDC provider: %w", err)
	}

	idVerifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleTokenVerifier{
		logger: logger,
		strategies: []verifyStrategy{
			&accessTokenStrategy{provider: provider},
			&idTokenStrategy{verifier: idVerifier},
		},
		timeout: timeout,
	}, nil
}

// Verify runs the strategy list in order. A provider timeout surfaces as
// ErrExternalService so the request fails instead of hanging.
func (v *GoogleTokenVerifier) Verify(ctx context.Context, rawToken string) (goth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	for _, s := range v.strategies {
		if err := ctx.Err(); err != nil {
			return goth.User{}, fmt.Errorf("%w: %v", types.ErrExternalService, err)
		}
		user, err := s.verify(ctx, rawToken)
		if err == nil {
			v.logger.DebugContext(ctx, "Google token verified",
				slog.String("strategy", s.name()),
				slog.String("email", user.Email))
			return user, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return goth.User{}, fmt.Errorf("%w: provider timeout", types.ErrExternalService)
		}
		v.logger.DebugContext(ctx, "Google token verification strategy failed",
			slog.String("strategy", s.name()),
			slog.Any("error", err))
	}
	return goth.User{}, types.ErrInvalidExternalToken
}

// accessTokenStrategy treats the raw token as an OAuth access token and asks
// the userinfo endpoint for the identity attributes.
type accessTokenStrategy struct {
	provider *oidc.Provider
}

func (s *accessTokenStrategy) name() string { return "access_token" }

func (s *accessTokenStrategy) verify(ctx context.Context, rawToken string) (goth.User, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: rawToken,
		TokenType:   "Bearer",
	})
	userInfo, err := s.provider.UserInfo(ctx, tokenSource)
	if err != nil {
		return goth.User{}, fmt.Errorf("userinfo request failed: %w", err)
	}

	var claims struct {
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return goth.User{}, fmt.Errorf("failed to parse userinfo claims: %w", err)
	}
	if userInfo.Email == "" {
		return goth.User{}, errors.New("userinfo response missing email")
	}

	return goth.User{
		Provider:  "google",
		UserID:    userInfo.Subject,
		Email:     userInfo.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		RawData: map[string]interface{}{
			"email_verified": userInfo.EmailVerified,
		},
	}, nil
}

// idTokenStrategy treats the raw token as an OIDC ID token and verifies its
// signature and audience against the configured client ID.
type idTokenStrategy struct {
	verifier *oidc.IDTokenVerifier
}

func (s *idTokenStrategy) name() string { return "id_token" }

func (s *idTokenStrategy) verify(ctx context.Context, rawToken string) (goth.User, error) {
	idToken, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return goth.User{}, fmt.Errorf("id token verification failed: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return goth.User{}, fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if claims.Email == "" {
		return goth.User{}, errors.New("id token missing email claim")
	}

	return goth.User{
		Provider:  "google",
		UserID:    idToken.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		RawData: map[string]interface{}{
			"email_verified": claims.EmailVerified,
		},
	}, nil
}
