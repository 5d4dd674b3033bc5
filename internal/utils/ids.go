package utils

import "github.com/google/uuid"

// IsUUID reports whether s is a canonical UUID. Stores use it to answer
// "not found" for malformed ids instead of sending them to the database.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
