package purchase

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyPurchased is returned when (userID, courseID) already exists in
// the ledger. Stores derive it from their uniqueness constraint.
var ErrAlreadyPurchased = errors.New("course already purchased")

type Purchase struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	CreatedAt time.Time `json:"createdAt"`
}

func New(userID, courseID string) Purchase {
	return Purchase{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
}

// CourseIDs returns the distinct course ids in purchase order.
func CourseIDs(ps []Purchase) []string {
	seen := make(map[string]struct{}, len(ps))
	out := make([]string, 0, len(ps))

	for _, p := range ps {
		if _, ok := seen[p.CourseID]; ok {
			continue
		}
		seen[p.CourseID] = struct{}{}
		out = append(out, p.CourseID)
	}

	return out
}
