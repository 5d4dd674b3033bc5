package imagehost

import (
	"context"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/geocoder89/coursehub/internal/domain/course"
)

var (
	ErrUnsupportedType = errors.New("image must be png or jpeg")
	ErrEmpty           = errors.New("image is empty")
)

// Host stores course images outside the database.
type Host interface {
	Upload(ctx context.Context, img Upload) (course.Image, error)
	Remove(ctx context.Context, remoteID string) error
}

// Upload is an image that already passed Check.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

var allowed = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
}

// Check validates an uploaded file before any network call. Both the
// declared type and the sniffed content must be png or jpeg; the sniffed
// type is returned.
func Check(filename, declared string, data []byte) (Upload, error) {
	if len(data) == 0 {
		return Upload{}, ErrEmpty
	}

	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	if declared != "" && declared != "application/octet-stream" {
		if _, ok := allowed[declared]; !ok {
			return Upload{}, ErrUnsupportedType
		}
	}

	sniffed := mimetype.Detect(data).String()
	if _, ok := allowed[sniffed]; !ok {
		return Upload{}, ErrUnsupportedType
	}

	return Upload{
		Filename:    filename,
		ContentType: sniffed,
		Data:        data,
	}, nil
}

func extensionFor(contentType string) string {
	if ext, ok := allowed[contentType]; ok {
		return ext
	}
	return ".bin"
}
