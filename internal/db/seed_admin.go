package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/geocoder89/coursehub/internal/security"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (principal.Principal, error)
	Create(ctx context.Context, p principal.Principal) (principal.Principal, error)
}

// EnsureAdmin creates the bootstrap admin from ADMIN_EMAIL/ADMIN_PASSWORD
// when it does not exist yet. It is a no-op when either is unset.
func EnsureAdmin(ctx context.Context, store AdminStore, hasher security.Hasher, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := store.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, principal.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return err
	}

	a := principal.New(principal.KindAdmin, principal.SignUpRequest{
		FirstName: cfg.AdminFirstName,
		LastName:  cfg.AdminLastName,
		Email:     cfg.AdminEmail,
	}, hash)

	_, err = store.Create(ctx, a)

	// another instance may have seeded it concurrently
	if errors.Is(err, principal.ErrEmailTaken) {
		return nil
	}

	if err != nil {
		return err
	}

	log.Info("bootstrap admin created", "admin_id", a.ID)
	return nil
}
