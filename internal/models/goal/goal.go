package goal

import (
	"strings"
	"time"
	"unicode/utf8"

	"achieveit/internal/apperr"
)

type Goal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Priority    Priority   `json:"priority"`
	Progress    int        `json:"progress"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Category string
type Priority string

const (
	CategoryPersonal  Category = "Personal"
	CategoryWork      Category = "Work"
	CategoryHealth    Category = "Health"
	CategoryFinance   Category = "Finance"
	CategoryEducation Category = "Education"
)

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const MinTitleLength = 3

func (c Category) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryWork, CategoryHealth, CategoryFinance, CategoryEducation:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Draft carries the user-editable fields of a goal. An empty ID means create.
type Draft struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

func (d Draft) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Title)) < MinTitleLength {
		return apperr.NewValidation("title", "must be at least 3 characters")
	}
	if !d.Category.Valid() {
		return apperr.NewValidation("category", "unknown category")
	}
	if !d.Priority.Valid() {
		return apperr.NewValidation("priority", "unknown priority")
	}
	return nil
}

// MutableFields is the partial document written when an existing goal is
// edited. Progress and completion only move through the toggle.
func (d Draft) MutableFields() map[string]any {
	return map[string]any{
		"title":       d.Title,
		"description": d.Description,
		"category":    string(d.Category),
		"priority":    string(d.Priority),
		"dueDate":     timeOrNil(d.DueDate),
	}
}

// NewFields is the full document written when a goal is created.
func (d Draft) NewFields(now time.Time) map[string]any {
	fields := d.MutableFields()
	fields["progress"] = 0
	fields["isCompleted"] = false
	fields["createdAt"] = now.UTC()
	return fields
}

// Toggled applies the completion policy: completing pins progress to 100;
// reopening a goal at 100 drops it to 90, otherwise progress is kept.
func (g Goal) Toggled() (isCompleted bool, progress int) {
	if !g.IsCompleted {
		return true, 100
	}
	if g.Progress < 100 {
		return false, g.Progress
	}
	return false, 90
}

func (g Goal) ToggleFields() map[string]any {
	done, progress := g.Toggled()
	return map[string]any{
		"isCompleted": done,
		"progress":    progress,
	}
}

func (g Goal) Draft() Draft {
	return Draft{
		ID:          g.ID,
		Title:       g.Title,
		Description: g.Description,
		Category:    g.Category,
		Priority:    g.Priority,
		DueDate:     g.DueDate,
	}
}

type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
}

func Summarize(goals []Goal) Stats {
	s := Stats{Total: len(goals)}
	for _, g := range goals {
		if g.IsCompleted {
			s.Completed++
		} else {
			s.InProgress++
		}
	}
	return s
}

func timeOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
