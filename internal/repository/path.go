package repository

import (
	"fmt"
	"strings"
)

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func validSegments(parts []string) bool {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	return true
}

// SplitDoc splits a document path into its collection path and id.
func SplitDoc(path string) (collection, id string, err error) {
	parts := segments(path)
	if len(parts) == 0 || len(parts)%2 != 0 || !validSegments(parts) {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// CleanCollection validates a collection path and returns it without
// surrounding slashes.
func CleanCollection(path string) (string, error) {
	parts := segments(path)
	if len(parts)%2 != 1 || !validSegments(parts) {
		return "", fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return strings.Join(parts, "/"), nil
}

func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func UserDoc(uid string) string {
	return Join("users", uid)
}

func GoalsCollection(uid string) string {
	return Join("users", uid, "goals")
}

func HabitsCollection(uid string) string {
	return Join("users", uid, "habits")
}
