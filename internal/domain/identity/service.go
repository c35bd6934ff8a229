package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/pkg/idgen"
	"github.com/healthhub/healthhub/pkg/validate"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrTooManyAttempts    = errors.New("too many sign-in attempts")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidStatus      = errors.New("invalid status")
)

const maxTestDoctors = 100

var doctorCodePattern = regexp.MustCompile(`^DOC[0-9A-Z]{1,29}$`)

// UserMessage maps a sign-in or sign-up error to the text shown to the user.
func UserMessage(err error) string {
	var v *validate.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrAccountDisabled):
		return "This account has been disabled. Please contact support."
	case errors.Is(err, ErrTooManyAttempts):
		return "Too many failed attempts. Please try again later."
	case errors.Is(err, ErrEmailTaken):
		return "An account with this email already exists."
	case errors.Is(err, ErrDoctorCodeTaken):
		return "That doctor code belongs to another account."
	case errors.Is(err, ErrInvalidRole):
		return "Please choose a valid account type."
	case errors.As(err, &v):
		return v.Err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}

// Options tunes sign-in throttling and doctor code assignment.
type Options struct {
	MaxAttempts int
	Lockout     time.Duration
	// DoctorCodes maps lower-case emails to the doctor code their bookings
	// were filed under. Listed doctors get that code instead of a generated one.
	DoctorCodes map[string]string
}

type Service struct {
	users    UserRepository
	tx       db.TxRunner
	sessions auth.SessionStore
	tokens   *auth.TokenIssuer
	ids      *idgen.Generator
	logger   zerolog.Logger
	opts     Options
	now      func() time.Time
}

func NewService(users UserRepository, tx db.TxRunner, sessions auth.SessionStore,
	tokens *auth.TokenIssuer, ids *idgen.Generator, logger zerolog.Logger, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Lockout <= 0 {
		opts.Lockout = 15 * time.Minute
	}
	return &Service{
		users:    users,
		tx:       tx,
		sessions: sessions,
		tokens:   tokens,
		ids:      ids,
		logger:   logger.With().Str("component", "identity").Logger(),
		opts:     opts,
		now:      time.Now,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignUp creates the account and profile in one transaction and opens a
// session for it.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if err := validate.Field("email", validate.Email(email)); err != nil {
		return nil, err
	}
	if err := validate.Field("password", validate.Password(req.Password)); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if err := validate.Field("display_name", validate.Name(name)); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if !signUpRoles[role] {
		return nil, ErrInvalidRole
	}
	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		p, err := validate.NormalizePhone(req.Phone)
		if err != nil {
			return nil, validate.Field("phone", err)
		}
		phone = p
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:          email,
		DisplayName:    name,
		Role:           role,
		Phone:          phone,
		Specialization: strings.TrimSpace(req.Specialization),
		Status:         StatusActive,
		PasswordHash:   hash,
	}
	s.applyRole(u, role)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user signed up")
	return s.openSession(ctx, u)
}

// SignIn authenticates by email and password. Failed attempts are counted
// per email; once the limit is reached further attempts are refused until
// the lockout window passes.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	n, err := s.sessions.Attempts(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check sign-in attempts: %w", err)
	}
	if n >= s.opts.MaxAttempts {
		return nil, ErrTooManyAttempts
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.recordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		s.recordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}
	if !u.Active() {
		return nil, ErrAccountDisabled
	}

	if err := s.sessions.ResetAttempts(ctx, email); err != nil {
		s.logger.Warn().Err(err).Msg("reset sign-in attempts")
	}
	return s.openSession(ctx, u)
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if _, err := s.sessions.IncrAttempts(ctx, email, s.opts.Lockout); err != nil {
		s.logger.Warn().Err(err).Msg("count failed sign-in")
	}
}

func (s *Service) openSession(ctx context.Context, u *User) (*AuthResult, error) {
	sid, err := auth.NewSessionID()
	if err != nil {
		return nil, err
	}
	sess := u.Session(sid, s.now())
	token, exp, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess, s.tokens.TTL()); err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: exp, Redirect: RedirectFor(u.Role)}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, ErrInvalidRole
	}
	return s.users.List(ctx, role, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.users.ListDoctors(ctx)
}

// UpdateProfile merges the set fields of upd into the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*User, error) {
	var out *User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if upd.Version != nil && *upd.Version != u.Version {
			return ErrConflict
		}
		if upd.DisplayName != nil {
			name := strings.TrimSpace(*upd.DisplayName)
			if err := validate.Field("display_name", validate.Name(name)); err != nil {
				return err
			}
			u.DisplayName = name
		}
		if upd.Phone != nil {
			phone := ""
			if strings.TrimSpace(*upd.Phone) != "" {
				p, err := validate.NormalizePhone(*upd.Phone)
				if err != nil {
					return validate.Field("phone", err)
				}
				phone = p
			}
			u.Phone = phone
		}
		if upd.Specialization != nil {
			u.Specialization = strings.TrimSpace(*upd.Specialization)
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// ChangeRole moves a user to role. Professional ids that no longer apply
// are cleared and the one the new role needs is generated if missing.
// Existing sessions are revoked so the new role is picked up on sign-in.
func (s *Service) ChangeRole(ctx context.Context, userID uuid.UUID, role string) (*User, error) {
	if !validRoles[role] {
		return nil, ErrInvalidRole
	}
	var out *User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		s.applyRole(u, role)
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.revokeSessions(ctx, userID)
	return out, nil
}

// SetDoctorCode re-keys a doctor to code, typically the code their legacy
// bookings carry. Sessions are revoked since they embed the old code.
func (s *Service) SetDoctorCode(ctx context.Context, userID uuid.UUID, code string) (*User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !doctorCodePattern.MatchString(code) {
		return nil, validate.Fieldf("doctor_code", "must look like DOC001")
	}
	var out *User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role != auth.RoleDoctor {
			return validate.Fieldf("doctor_code", "user is not a doctor")
		}
		u.DoctorCode = &code
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.revokeSessions(ctx, userID)
	return out, nil
}

func (s *Service) SetStatus(ctx context.Context, userID uuid.UUID, status string) (*User, error) {
	if !validStatuses[status] {
		return nil, ErrInvalidStatus
	}
	var out *User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		u.Status = status
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if status == StatusInactive {
		s.revokeSessions(ctx, userID)
	}
	return out, nil
}

func (s *Service) revokeSessions(ctx context.Context, userID uuid.UUID) {
	n, err := s.sessions.DeleteUser(ctx, userID.String())
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("revoke sessions")
		return
	}
	s.logger.Info().Str("user_id", userID.String()).Int("sessions", n).Msg("sessions revoked")
}

func (s *Service) applyRole(u *User, role string) {
	u.Role = role
	if role == auth.RoleDoctor {
		if u.DoctorCode == nil {
			code, ok := s.opts.DoctorCodes[normalizeEmail(u.Email)]
			if !ok {
				code = s.ids.Next(idgen.PrefixDoctor)
			}
			u.DoctorCode = &code
		}
	} else {
		u.DoctorCode = nil
	}
	if role == auth.RoleMerchant {
		if u.MerchantID == nil {
			id := s.ids.Next(idgen.PrefixMerchant)
			u.MerchantID = &id
		}
	} else {
		u.MerchantID = nil
	}
}

// TestDoctor is a generated doctor account and its one-time password.
type TestDoctor struct {
	User     *User  `json:"user"`
	Password string `json:"password"`
}

// CreateTestDoctors creates n doctor accounts in one transaction, each with
// a unique doctor code and a random password.
func (s *Service) CreateTestDoctors(ctx context.Context, n int) ([]TestDoctor, error) {
	if n < 1 || n > maxTestDoctors {
		return nil, validate.Fieldf("count", "must be between 1 and %d", maxTestDoctors)
	}
	out := make([]TestDoctor, 0, n)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for i := 0; i < n; i++ {
			password, err := randomPassword()
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u := &User{
				DisplayName:    fmt.Sprintf("Test Doctor %d", i+1),
				Specialization: "General Medicine",
				Status:         StatusActive,
				PasswordHash:   hash,
			}
			s.applyRole(u, auth.RoleDoctor)
			u.Email = strings.ToLower(*u.DoctorCode) + "@doctors.test"
			if err := s.users.Create(ctx, u); err != nil {
				return fmt.Errorf("create test doctor %d: %w", i+1, err)
			}
			out = append(out, TestDoctor{User: u, Password: password})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("count", n).Msg("test doctors created")
	return out, nil
}

func randomPassword() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	// hex alone may lack a letter or a digit
	return "Dr" + hex.EncodeToString(b) + "7", nil
}
