package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/geocoder89/coursehub/internal/domain/course"
)

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// APIURL overrides the upload API origin, for tests.
	APIURL string
	// TimeoutSeconds bounds every SDK call; 0 keeps the SDK default.
	TimeoutSeconds int64
}

// Cloudinary stores course images through the Cloudinary upload API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}

	conf, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}

	if cfg.APIURL != "" {
		conf.API.UploadPrefix = cfg.APIURL
	}
	if cfg.TimeoutSeconds > 0 {
		conf.API.Timeout = cfg.TimeoutSeconds
	}

	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}

	return &Cloudinary{cld: cld, folder: cfg.Folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, img Upload) (course.Image, error) {
	res, err := c.cld.Upload.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		Folder: c.folder,
	})
	if err != nil {
		return course.Image{}, fmt.Errorf("cloudinary upload: %w", err)
	}

	// the SDK decodes api errors into the result instead of returning them
	if res.Error.Message != "" {
		return course.Image{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}

	if res.PublicID == "" || res.SecureURL == "" {
		return course.Image{}, errors.New("cloudinary upload: incomplete response")
	}

	return course.Image{RemoteID: res.PublicID, URL: res.SecureURL}, nil
}

// Remove destroys remoteID. An id the host no longer knows counts as removed.
func (c *Cloudinary) Remove(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return nil
	}

	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: remoteID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}

	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}

	switch res.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("cloudinary destroy: unexpected result %q", res.Result)
	}
}
