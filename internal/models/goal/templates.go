package goal

type Template struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

var templates = []Template{
	{
		Title:       "Read 12 Books This Year",
		Description: "Read one book every month to expand knowledge.",
		Category:    CategoryPersonal,
	},
	{
		Title:       "Learn a New Skill for Work",
		Description: "Complete an online course related to my career.",
		Category:    CategoryWork,
	},
	{
		Title:       "Exercise 3 Times a Week",
		Description: "Go to the gym or do home workouts on Monday, Wednesday, and Friday.",
		Category:    CategoryHealth,
	},
	{
		Title:       "Save $1000 for Emergency Fund",
		Description: "Set aside money from each paycheck for the emergency fund.",
		Category:    CategoryFinance,
	},
}

// Templates returns a copy of the built-in goal presets.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// Draft prefills a new goal from the template with medium priority.
func (t Template) Draft() Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    PriorityMedium,
	}
}
