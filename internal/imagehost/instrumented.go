package imagehost

import (
	"context"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/observability"
)

// Instrumented records latency and outcome of every call to the wrapped host.
type Instrumented struct {
	host Host
	prom *observability.Prom
}

func NewInstrumented(host Host, prom *observability.Prom) *Instrumented {
	return &Instrumented{host: host, prom: prom}
}

func (i *Instrumented) Upload(ctx context.Context, img Upload) (course.Image, error) {
	var out course.Image

	err := i.prom.ObserveImageHost("upload", func() error {
		var err error
		out, err = i.host.Upload(ctx, img)
		return err
	})

	return out, err
}

func (i *Instrumented) Remove(ctx context.Context, remoteID string) error {
	return i.prom.ObserveImageHost("remove", func() error {
		return i.host.Remove(ctx, remoteID)
	})
}
