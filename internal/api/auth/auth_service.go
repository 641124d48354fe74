package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"golang.org/x/crypto/bcrypt"

	"github.com/escuela-posgrado/sistema-academico/app/observability/metrics"
	"github.com/escuela-posgrado/sistema-academico/config"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the authentication and account-linking operations.
type AuthService interface {
	// Login authenticates a username-or-email/password pair and returns a
	// bearer token plus the public profile.
	Login(ctx context.Context, usernameOrEmail, password string) (string, *types.Perfil, error)

	// Register creates a new local account. No token is issued.
	Register(ctx context.Context, req RegisterRequest) error

	// LoginWithGoogle verifies an externally issued Google token,
	// finds-or-creates the local account and returns a bearer token.
	LoginWithGoogle(ctx context.Context, rawToken string) (string, *types.Perfil, error)

	// GetOrCreateUserFromGoogle resolves the local account for a verified
	// Google identity, creating it when absent.
	GetOrCreateUserFromGoogle(ctx context.Context, providerUser goth.User) (*types.Usuario, error)

	// GetPerfil returns the public profile for a username.
	GetPerfil(ctx context.Context, username string) (*types.Perfil, error)

	// ChangePassword verifies the old password and stores a new hash.
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

type AuthServiceImpl struct {
	logger    *slog.Logger
	repo      AuthRepo
	tokens    *TokenIssuer
	verifier  GoogleVerifier
	googleCfg config.GoogleConfig
	metrics   *metrics.AppMetrics
}

// NewAuthService creates a new AuthService. The metrics instance may be nil
// (tests run without a meter provider).
func NewAuthService(repo AuthRepo, tokens *TokenIssuer, verifier GoogleVerifier, googleCfg config.GoogleConfig, logger *slog.Logger, m *metrics.AppMetrics) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:    logger,
		repo:      repo,
		tokens:    tokens,
		verifier:  verifier,
		googleCfg: googleCfg,
		metrics:   m,
	}
}

// Login authenticates against the credential store. An unknown identity and
// a wrong password both surface as ErrInvalidCredentials so callers cannot
// enumerate accounts; deactivated accounts are rejected before the password
// compare so they are never treated as bad-password.
func (s *AuthServiceImpl) Login(ctx context.Context, usernameOrEmail, password string) (string, *types.Perfil, error) {
	l := s.logger.With(slog.String("method", "Login"))
	if s.metrics != nil {
		s.metrics.LoginRequestsTotal.Add(ctx, 1)
	}

	user, err := s.repo.GetUserByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.LoginFailuresTotal.Add(ctx, 1)
			}
			return "", nil, types.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("login lookup failed: %w", err)
	}

	if !user.Activo {
		l.WarnContext(ctx, "Login attempt on deactivated account", slog.String("username", user.Username))
		if s.metrics != nil {
			s.metrics.LoginFailuresTotal.Add(ctx, 1)
		}
		return "", nil, types.ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if s.metrics != nil {
			s.metrics.LoginFailuresTotal.Add(ctx, 1)
		}
		return "", nil, types.ErrInvalidCredentials
	}

	if err := s.repo.UpdateUltimoAcceso(ctx, user.ID); err != nil {
		// Not fatal for the login itself.
		l.WarnContext(ctx, "Failed to update ultimo_acceso", slog.Any("error", err))
	} else {
		now := time.Now()
		user.UltimoAcceso = &now
	}

	token, err := s.tokens.Issue(user.Username, user.Rol)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return token, types.PerfilDe(user), nil
}

// Register validates and persists a new account. The pre-checks give
// per-field errors up front; the storage unique indexes remain the final
// arbiter and their violations map to the same errors.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) error {
	if err := validateRegisterRequest(&req); err != nil {
		return err
	}
	// Emails are stored lowercased; normalize before the pre-check so a
	// mixed-case duplicate gets the same friendly error.
	email := strings.ToLower(req.Email)
	rol := types.Rol(strings.ToUpper(req.Rol))
	if req.Rol == "" {
		rol = types.RolEstudiante
	}
	if !rol.Valid() {
		return &types.ValidationError{Message: "Error: Rol no válido!"}
	}

	if taken, err := s.repo.UsernameExists(ctx, req.Username); err != nil {
		return fmt.Errorf("username check failed: %w", err)
	} else if taken {
		return types.ErrDuplicateUsername
	}
	if taken, err := s.repo.EmailExists(ctx, email); err != nil {
		return fmt.Errorf("email check failed: %w", err)
	} else if taken {
		return types.ErrDuplicateEmail
	}
	if req.DNI != nil {
		if taken, err := s.repo.DNIExists(ctx, *req.DNI); err != nil {
			return fmt.Errorf("dni check failed: %w", err)
		} else if taken {
			return types.ErrDuplicateDNI
		}
	}
	switch rol {
	case types.RolEstudiante, types.RolPostulante:
		if req.CodigoEstudiante != nil {
			if taken, err := s.repo.CodigoEstudianteExists(ctx, *req.CodigoEstudiante); err != nil {
				return fmt.Errorf("codigo estudiante check failed: %w", err)
			} else if taken {
				return types.ErrDuplicateCodigo
			}
		}
	case types.RolDocente, types.RolCoordinador:
		if req.CodigoDocente != nil {
			if taken, err := s.repo.CodigoDocenteExists(ctx, *req.CodigoDocente); err != nil {
				return fmt.Errorf("codigo docente check failed: %w", err)
			} else if taken {
				return types.ErrDuplicateCodigo
			}
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.Usuario{
		Username:        req.Username,
		Email:           email,
		Password:        string(hashed),
		Nombres:         req.Nombres,
		Apellidos:       req.Apellidos,
		DNI:             req.DNI,
		Telefono:        req.Telefono,
		Rol:             rol,
		Especialidad:    req.Especialidad,
		ProgramaInteres: req.ProgramaInteres,
	}
	switch rol {
	case types.RolEstudiante, types.RolPostulante:
		user.CodigoEstudiante = req.CodigoEstudiante
	case types.RolDocente, types.RolCoordinador:
		user.CodigoDocente = req.CodigoDocente
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RegisterRequestsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "User registered",
		slog.String("username", user.Username),
		slog.String("rol", string(user.Rol)))
	return nil
}

func validateRegisterRequest(req *RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if len(req.Username) < 3 || len(req.Username) > 50 {
		return &types.ValidationError{Message: "Error: El nombre de usuario debe tener entre 3 y 50 caracteres!"}
	}
	if !strings.Contains(req.Email, "@") {
		return &types.ValidationError{Message: "Error: El email no es válido!"}
	}
	if len(req.Password) < 6 {
		return &types.ValidationError{Message: "Error: La contraseña debe tener al menos 6 caracteres!"}
	}
	if req.DNI != nil {
		dni := strings.TrimSpace(*req.DNI)
		if len(dni) != 8 || strings.Trim(dni, "0123456789") != "" {
			return &types.ValidationError{Message: "Error: El DNI debe tener 8 dígitos!"}
		}
		req.DNI = &dni
	}
	return nil
}

// LoginWithGoogle runs the external-identity linking flow: verify, domain
// check, find-or-create, issue.
func (s *AuthServiceImpl) LoginWithGoogle(ctx context.Context, rawToken string) (string, *types.Perfil, error) {
	l := s.logger.With(slog.String("method", "LoginWithGoogle"))

	providerUser, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", nil, err
	}
	// A missing claim is treated as unverified, not trusted.
	if verified, ok := providerUser.RawData["email_verified"].(bool); !ok || !verified {
		l.WarnContext(ctx, "Google identity has unverified email", slog.String("email", providerUser.Email))
		return "", nil, types.ErrInvalidExternalToken
	}

	if !s.domainAllowed(providerUser.Email) {
		l.WarnContext(ctx, "Google login rejected by domain allow-list", slog.String("email", providerUser.Email))
		return "", nil, types.ErrDomainNotAllowed
	}

	user, err := s.GetOrCreateUserFromGoogle(ctx, providerUser)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.UpdateUltimoAcceso(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "Failed to update ultimo_acceso", slog.Any("error", err))
	} else {
		now := time.Now()
		user.UltimoAcceso = &now
	}

	token, err := s.tokens.Issue(user.Username, user.Rol)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.GoogleLoginsTotal.Add(ctx, 1)
	}
	return token, types.PerfilDe(user), nil
}

func (s *AuthServiceImpl) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, allowed := range s.googleCfg.AllowedDomains {
		if domain == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// GetOrCreateUserFromGoogle finds the local account by verified email or
// creates one. Creation synthesizes a unique username from the email
// local-part and, for students, a unique EST<year><seq> code. The duplicate
// translation from the storage layer drives the retry loop, so a concurrent
// creation of the same email converges on a single row.
func (s *AuthServiceImpl) GetOrCreateUserFromGoogle(ctx context.Context, providerUser goth.User) (*types.Usuario, error) {
	l := s.logger.With(slog.String("method", "GetOrCreateUserFromGoogle"))
	email := strings.ToLower(providerUser.Email)

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return s.linkExisting(ctx, existing, providerUser)
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("lookup by email failed: %w", err)
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	// The account only ever authenticates through Google; give it a random
	// password nobody can log in with.
	unusable, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	rol := rolFromLocalPart(localPart(email))
	user := &types.Usuario{
		Username:  username,
		Email:     email,
		Password:  string(unusable),
		Nombres:   providerUser.FirstName,
		Apellidos: providerUser.LastName,
		Rol:       rol,
	}
	if rol == types.RolEstudiante {
		codigo, err := s.uniqueCodigoEstudiante(ctx)
		if err != nil {
			return nil, err
		}
		user.CodigoEstudiante = &codigo
	}

	for attempt := 0; attempt < 3; attempt++ {
		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			l.InfoContext(ctx, "Created local account from Google identity",
				slog.String("username", user.Username),
				slog.String("rol", string(user.Rol)))
			return user, nil
		}
		switch {
		case errors.Is(err, types.ErrDuplicateEmail):
			// Lost a concurrent race; reuse the row the winner inserted.
			existing, lookupErr := s.repo.GetUserByEmail(ctx, email)
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup after duplicate email: %w", lookupErr)
			}
			return s.linkExisting(ctx, existing, providerUser)
		case errors.Is(err, types.ErrDuplicateUsername):
			user.Username, err = s.uniqueUsername(ctx, email)
			if err != nil {
				return nil, err
			}
		case errors.Is(err, types.ErrDuplicateCodigo):
			codigo, codeErr := s.uniqueCodigoEstudiante(ctx)
			if codeErr != nil {
				return nil, codeErr
			}
			user.CodigoEstudiante = &codigo
		default:
			return nil, fmt.Errorf("failed to create linked user: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create linked user after retries: %w", err)
}

func (s *AuthServiceImpl) linkExisting(ctx context.Context, user *types.Usuario, providerUser goth.User) (*types.Usuario, error) {
	if !user.Activo {
		return nil, types.ErrAccountDisabled
	}
	// Backfill name fields the local record lacks.
	if user.Nombres == "" && providerUser.FirstName != "" || user.Apellidos == "" && providerUser.LastName != "" {
		nombres := user.Nombres
		apellidos := user.Apellidos
		if nombres == "" {
			nombres = providerUser.FirstName
		}
		if apellidos == "" {
			apellidos = providerUser.LastName
		}
		if err := s.repo.UpdateNombres(ctx, user.ID, nombres, apellidos); err != nil {
			s.logger.WarnContext(ctx, "Failed to backfill name fields", slog.Any("error", err))
		} else {
			user.Nombres = nombres
			user.Apellidos = apellidos
		}
	}
	return user, nil
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// uniqueUsername derives a username from the email local-part and probes
// numeric suffixes until an unused one is found.
func (s *AuthServiceImpl) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := sanitizeUsername(localPart(email))
	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := s.repo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("username probe failed: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "usuario"
	}
	return b.String()
}

// uniqueCodigoEstudiante builds EST<year><3-digit-seq>, starting the probe
// at the current student count + 1.
func (s *AuthServiceImpl) uniqueCodigoEstudiante(ctx context.Context) (string, error) {
	count, err := s.repo.CountByRol(ctx, types.RolEstudiante)
	if err != nil {
		return "", fmt.Errorf("student count failed: %w", err)
	}
	year := time.Now().Year()
	for seq := count + 1; ; seq++ {
		codigo := fmt.Sprintf("EST%d%03d", year, seq)
		taken, err := s.repo.CodigoEstudianteExists(ctx, codigo)
		if err != nil {
			return "", fmt.Errorf("student code probe failed: %w", err)
		}
		if !taken {
			return codigo, nil
		}
	}
}

// rolFromLocalPart is a convenience default only: an administrator must
// confirm or adjust the role after creation. A matched substring is never
// treated as a trust signal.
func rolFromLocalPart(localPart string) types.Rol {
	lp := strings.ToLower(localPart)
	switch {
	case strings.Contains(lp, "admin"):
		return types.RolAdmin
	case strings.Contains(lp, "coordinador"):
		return types.RolCoordinador
	case strings.Contains(lp, "docente"):
		return types.RolDocente
	case strings.Contains(lp, "postulante"):
		return types.RolPostulante
	default:
		return types.RolEstudiante
	}
}

func (s *AuthServiceImpl) GetPerfil(ctx context.Context, username string) (*types.Perfil, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.Activo {
		return nil, types.ErrAccountDisabled
	}
	return types.PerfilDe(user), nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return &types.ValidationError{Message: "Error: La contraseña debe tener al menos 6 caracteres!"}
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return types.ErrInvalidCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, string(hashed))
}
