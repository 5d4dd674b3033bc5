package imagehost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/course"
)

type flakyHost struct {
	err   error
	calls int
}

func (f *flakyHost) Upload(context.Context, Upload) (course.Image, error) {
	f.calls++
	if f.err != nil {
		return course.Image{}, f.err
	}
	return course.Image{RemoteID: "r", URL: "u"}, nil
}

func (f *flakyHost) Remove(context.Context, string) error {
	f.calls++
	return f.err
}

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	inner := &flakyHost{err: errors.New("503")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	now := time.Now()
	b.now = func() time.Time { return now }

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Remove(ctx, "x"); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected upstream error, got %v", i+1, err)
		}
	}

	if err := b.Remove(ctx, "x"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open circuit still reached upstream: %d calls", inner.calls)
	}

	// after cooldown one trial call goes through and closes the circuit
	now = now.Add(time.Minute)
	inner.err = nil

	if _, err := b.Upload(ctx, Upload{}); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if err := b.Remove(ctx, "x"); err != nil {
		t.Fatalf("closed circuit: %v", err)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	inner := &flakyHost{err: errors.New("503")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Remove(context.Background(), "x")

	now = now.Add(time.Second)
	if err := b.Remove(context.Background(), "x"); err == nil || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("trial call should reach upstream, got %v", err)
	}

	if err := b.Remove(context.Background(), "x"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestBreaker_CallerCancellationDoesNotCount(t *testing.T) {
	b := NewBreaker(&flakyHost{err: context.Canceled}, BreakerConfig{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = b.Remove(ctx, "x")

	if err := b.Remove(context.Background(), "x"); errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("cancelled caller opened the circuit")
	}
}
