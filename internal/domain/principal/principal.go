package principal

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind separates the two credential domains. A principal of one kind can
// never authenticate as the other.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

func (k Kind) IsValid() bool {
	return k == KindUser || k == KindAdmin
}

// Label is the capitalised form used in response messages.
func (k Kind) Label() string {
	if k == KindAdmin {
		return "Admin"
	}
	return "User"
}

var (
	ErrNotFound   = errors.New("principal not found")
	ErrEmailTaken = errors.New("email already in use")
)

type Principal struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary is the public view returned by signup, login and profile updates.
type Summary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (p Principal) Summary() Summary {
	return Summary{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
	}
}

type SignUpRequest struct {
	FirstName string `json:"firstName" binding:"required,trimmin=3,max=60"`
	LastName  string `json:"lastName" binding:"required,trimmin=3,max=60"`
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=6,maxbytes=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ProfileUpdate is partial: nil fields keep their stored value.
type ProfileUpdate struct {
	FirstName *string `json:"firstName" binding:"omitempty,trimmin=3,max=60"`
	LastName  *string `json:"lastName" binding:"omitempty,trimmin=3,max=60"`
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}

type PasswordUpdateRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,maxbytes=72"`
}

// NormalizeEmail is applied before every store and lookup so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New builds a principal from a validated signup request and an already
// computed password hash.
func New(kind Kind, req SignUpRequest, passwordHash string) Principal {
	now := time.Now().UTC()

	return Principal{
		ID:           uuid.NewString(),
		Kind:         kind,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply returns a copy of p with the non-nil fields of u written over it.
func (u ProfileUpdate) Apply(p Principal) Principal {
	if u.FirstName != nil {
		p.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		p.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.Email != nil {
		p.Email = NormalizeEmail(*u.Email)
	}
	p.UpdatedAt = time.Now().UTC()

	return p
}
