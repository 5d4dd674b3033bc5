package cleanup

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var (
	ErrNoTask       = errors.New("no cleanup task available")
	ErrTaskNotFound = errors.New("cleanup task not found")
)

const DefaultMaxAttempts = 8

// A Task asks the worker to release a remote image that a request could not
// remove synchronously.
type Task struct {
	ID          string     `json:"id"`
	RemoteID    string     `json:"remoteId"`
	Reason      string     `json:"reason"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	RunAt       time.Time  `json:"runAt"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	LockedBy    *string    `json:"lockedBy,omitempty"`
	LastError   *string    `json:"lastError,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func New(remoteID, reason string) Task {
	now := time.Now().UTC()

	return Task{
		ID:          uuid.NewString(),
		RemoteID:    remoteID,
		Reason:      reason,
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
