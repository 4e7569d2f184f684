package user

import "time"

const DefaultStepGoal = 8000

// Profile is the users/{uid} document.
type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	CreatedAt   time.Time `json:"createdAt"`
	StepGoal    int       `json:"stepGoal"`
}

// User is the signed-in identity as seen by the session.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

func (p Profile) Fields() map[string]any {
	return map[string]any{
		"uid":         p.UID,
		"email":       p.Email,
		"displayName": p.DisplayName,
		"photoURL":    p.PhotoURL,
		"createdAt":   p.CreatedAt.UTC(),
		"stepGoal":    p.StepGoal,
	}
}
