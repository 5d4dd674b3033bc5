package imagehost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/google/uuid"
)

// PublicPath is where the router serves files written by Local.
const PublicPath = "/images"

// Local keeps images on disk, for development and tests without an image
// host account.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Upload(ctx context.Context, img Upload) (course.Image, error) {
	if err := ctx.Err(); err != nil {
		return course.Image{}, err
	}

	name := uuid.NewString() + extensionFor(img.ContentType)

	if err := os.WriteFile(filepath.Join(l.dir, name), img.Data, 0o644); err != nil {
		return course.Image{}, fmt.Errorf("write image: %w", err)
	}

	return course.Image{
		RemoteID: name,
		URL:      l.baseURL + PublicPath + "/" + name,
	}, nil
}

func (l *Local) Remove(ctx context.Context, remoteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if remoteID == "" {
		return nil
	}

	if remoteID != filepath.Base(remoteID) || strings.HasPrefix(remoteID, ".") {
		return fmt.Errorf("invalid image id %q", remoteID)
	}

	err := os.Remove(filepath.Join(l.dir, remoteID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
