package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/principal"
)

// PrincipalsRepo holds one principal kind. The email index is updated under
// the same lock as the record so uniqueness holds under concurrent signups.
type PrincipalsRepo struct {
	kind    principal.Kind
	mu      sync.RWMutex
	byID    map[string]principal.Principal
	byEmail map[string]string
}

func NewPrincipalsRepo(kind principal.Kind) *PrincipalsRepo {
	return &PrincipalsRepo{
		kind:    kind,
		byID:    make(map[string]principal.Principal),
		byEmail: make(map[string]string),
	}
}

func (r *PrincipalsRepo) Create(_ context.Context, p principal.Principal) (principal.Principal, error) {
	p.Kind = r.kind
	p.Email = principal.NormalizeEmail(p.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[p.Email]; taken {
		return principal.Principal{}, principal.ErrEmailTaken
	}

	r.byID[p.ID] = p
	r.byEmail[p.Email] = p.ID

	return p, nil
}

func (r *PrincipalsRepo) GetByEmail(_ context.Context, email string) (principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[principal.NormalizeEmail(email)]
	if !ok {
		return principal.Principal{}, principal.ErrNotFound
	}

	return r.byID[id], nil
}

func (r *PrincipalsRepo) GetByID(_ context.Context, id string) (principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return principal.Principal{}, principal.ErrNotFound
	}

	return p, nil
}

// UpdateProfile stores the names and email of p, keeping its hash.
func (r *PrincipalsRepo) UpdateProfile(_ context.Context, p principal.Principal) (principal.Principal, error) {
	email := principal.NormalizeEmail(p.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[p.ID]
	if !ok {
		return principal.Principal{}, principal.ErrNotFound
	}

	if owner, taken := r.byEmail[email]; taken && owner != p.ID {
		return principal.Principal{}, principal.ErrEmailTaken
	}

	delete(r.byEmail, current.Email)

	current.FirstName = p.FirstName
	current.LastName = p.LastName
	current.Email = email
	current.UpdatedAt = time.Now().UTC()

	r.byID[p.ID] = current
	r.byEmail[email] = p.ID

	return current, nil
}

func (r *PrincipalsRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return principal.ErrNotFound
	}

	p.PasswordHash = hash
	p.UpdatedAt = time.Now().UTC()
	r.byID[id] = p

	return nil
}

func (r *PrincipalsRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}
