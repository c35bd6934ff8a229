package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var validRoles = map[string]bool{
	auth.RoleAdmin:    true,
	auth.RoleDoctor:   true,
	auth.RoleMerchant: true,
	auth.RoleUser:     true,
}

// Self-service sign-up cannot create admins.
var signUpRoles = map[string]bool{
	auth.RoleDoctor:   true,
	auth.RoleMerchant: true,
	auth.RoleUser:     true,
}

var validStatuses = map[string]bool{
	StatusActive:   true,
	StatusInactive: true,
}

// User is an account together with its profile. DoctorCode is set iff Role
// is doctor, MerchantID iff Role is merchant.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Role           string    `json:"role"`
	DoctorCode     *string   `json:"doctor_code,omitempty"`
	MerchantID     *string   `json:"merchant_id,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Status         string    `json:"status"`
	PasswordHash   string    `json:"-"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) Active() bool { return u.Status == StatusActive }

// Session builds the session record for a freshly authenticated user.
func (u *User) Session(id string, now time.Time) auth.Session {
	s := auth.Session{
		ID:        id,
		UserID:    u.ID.String(),
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: now,
	}
	if u.DoctorCode != nil {
		s.DoctorCode = *u.DoctorCode
	}
	if u.MerchantID != nil {
		s.MerchantID = *u.MerchantID
	}
	return s
}

// Doctor is the public directory entry for a doctor.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	DisplayName    string    `json:"display_name"`
	DoctorCode     string    `json:"doctor_code"`
	Specialization string    `json:"specialization,omitempty"`
}

// SignUpRequest is the sign-up payload. Phone and Specialization are the
// role-specific extras.
type SignUpRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	Phone          string `json:"phone,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left untouched. Version, when set, must match the stored
// row.
type ProfileUpdate struct {
	DisplayName    *string `json:"display_name,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	Version        *int    `json:"version,omitempty"`
}

// AuthResult is returned by sign-up and sign-in.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}

// RedirectFor returns the landing page for role.
func RedirectFor(role string) string {
	switch role {
	case auth.RoleAdmin:
		return "/admin"
	case auth.RoleDoctor:
		return "/doctor"
	case auth.RoleMerchant:
		return "/merchant"
	default:
		return "/dashboard"
	}
}
