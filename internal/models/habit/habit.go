package habit

import (
	"strings"

	"achieveit/internal/apperr"
)

// Days is indexed Sunday (0) through Saturday (6).
type Days [7]bool

type Habit struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CompletedDays Days   `json:"completedDays"`
}

// Default is a habit seeded into an empty collection.
type Default struct {
	ID   string
	Name string
}

// Defaults have fixed ids so concurrent seeding writes converge.
var Defaults = []Default{
	{ID: "default-water", Name: "Drink 8 glasses of water"},
	{ID: "default-reading", Name: "Read for 15 minutes"},
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.NewValidation("name", "must not be empty")
	}
	return nil
}

func ValidateDay(day int) error {
	if day < 0 || day > 6 {
		return apperr.NewValidation("day", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	return nil
}

// WithDay returns a copy of d with only index day set to value.
func (d Days) WithDay(day int, value bool) Days {
	d[day] = value
	return d
}

func (d Days) Slice() []bool {
	return d[:]
}

func NewFields(name string) map[string]any {
	return map[string]any{
		"name":          name,
		"completedDays": Days{}.Slice(),
	}
}

func DaysFields(d Days) map[string]any {
	return map[string]any{"completedDays": d.Slice()}
}
