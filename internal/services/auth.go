package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ventureflow/internal/audit"
	"ventureflow/internal/config"
	"ventureflow/internal/logging"
	"ventureflow/internal/metrics"
	"ventureflow/internal/models"
	"ventureflow/internal/password"
	"ventureflow/internal/session"
	"ventureflow/internal/storage"
)

const DefaultRole = "User"

// Outcome of a single login attempt.
type Outcome int

const (
	Denied Outcome = iota
	Granted
	Error
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "error"
	}
}

// LoginResult carries a login outcome as data. User is set only when
// Granted, Err only when Error.
type LoginResult struct {
	Outcome Outcome
	User    *models.User
	Err     error
}

type AuthService struct {
	users    storage.UserStore
	hasher   *password.Hasher
	sessions *session.Manager
	audit    *audit.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users storage.UserStore, hasher *password.Hasher, sessions *session.Manager, auditLogger *audit.Logger) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		audit:    auditLogger,
	}
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both come back Denied; store failures and corrupt hashes come
// back Error.
func (s *AuthService) Authenticate(ctx context.Context, username, plaintext string) LoginResult {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return LoginResult{Outcome: Error, Err: err}
	}

	if user == nil {
		// Spend the same KDF time as a real check so response latency does
		// not reveal whether the username exists.
		s.burnVerify(ctx, plaintext)
		return LoginResult{Outcome: Denied}
	}

	ok, err := s.hasher.Verify(ctx, plaintext, user.PasswordHash)
	if err != nil {
		return LoginResult{Outcome: Error, Err: fmt.Errorf("verify password for user %d: %w", user.ID, err)}
	}
	if !ok {
		return LoginResult{Outcome: Denied}
	}
	return LoginResult{Outcome: Granted, User: user}
}

// Login authenticates and applies the side effects of the outcome: a new
// session and a login-success record when Granted, a login-failure record
// when Denied. Error outcomes produce neither.
func (s *AuthService) Login(ctx context.Context, username, plaintext string) (LoginResult, *models.Session) {
	result := s.Authenticate(ctx, username, plaintext)
	metrics.LoginAttempts.WithLabelValues(result.Outcome.String()).Inc()

	switch result.Outcome {
	case Denied:
		s.audit.Record(ctx, audit.CategoryLoginFailure, username, nil)
		return result, nil
	case Error:
		return result, nil
	}

	sess, err := s.sessions.Create(ctx, result.User.ID)
	if err != nil {
		return LoginResult{Outcome: Error, Err: err}, nil
	}
	s.audit.Record(ctx, audit.CategoryLoginSuccess, result.User.Username, audit.Fields{"role": result.User.Role})
	return result, sess
}

// Logout destroys the session and records the event for actor.
func (s *AuthService) Logout(ctx context.Context, sessionID, actor string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.CategoryLogout, actor, nil)
	return nil
}

// Registration is the input to Register.
type Registration struct {
	Username string
	Password string
	Name     string
	Role     string
}

// Register validates, hashes and stores a new user, then signs them in.
// Validation problems and a taken username come back as *ValidationError.
func (s *AuthService) Register(ctx context.Context, reg Registration) (*models.User, *models.Session, error) {
	if err := ValidateRegistration(reg); err != nil {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}

	existing, err := s.users.GetByUsername(ctx, reg.Username)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if existing != nil {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, nil, errUsernameTaken
	}

	user, err := s.createUser(ctx, reg)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUsername) {
			metrics.Registrations.WithLabelValues("rejected").Inc()
			return nil, nil, errUsernameTaken
		}
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	metrics.Registrations.WithLabelValues("created").Inc()
	s.audit.Record(ctx, audit.CategoryRegistration, user.Username, audit.Fields{"role": user.Role})
	return user, sess, nil
}

func (s *AuthService) createUser(ctx context.Context, reg Registration) (*models.User, error) {
	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	name := reg.Name
	if name == "" {
		name = reg.Username
	}
	role := reg.Role
	if role == "" {
		role = DefaultRole
	}

	return s.users.Create(ctx, storage.NewUser{
		Username:     reg.Username,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
	})
}

// SeedDefaultUser creates the bootstrap account through the normal hashing
// path when it does not exist yet. It never special-cases that account at
// login time.
func (s *AuthService) SeedDefaultUser(ctx context.Context, def config.DefaultUserConfig) error {
	if def.Username == "" || def.Password == "" {
		return nil
	}

	existing, err := s.users.GetByUsername(ctx, def.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	user, err := s.createUser(ctx, Registration{
		Username: def.Username,
		Password: def.Password,
		Name:     def.Name,
		Role:     def.Role,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUsername) {
			return nil
		}
		return fmt.Errorf("seed default user: %w", err)
	}

	logging.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("Bootstrap user created")
	return nil
}

// GetUser returns the user with id, or nil when absent.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) burnVerify(ctx context.Context, plaintext string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(ctx, "not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(ctx, plaintext, s.dummyHash)
	}
}
