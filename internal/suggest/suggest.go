// Package suggest produces goal suggestions from a text generation model.
package suggest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"

	"go.uber.org/zap"
)

const MinInputLength = 10

var ErrEmptySuggestion = errors.New("generator returned no text")

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var promptTmpl = template.Must(template.New("suggestGoal").Parse(
	`You are an AI assistant that provides suggestions for realistic and achievable goals based on the user's current goals and past performance.

Current Goals: {{.CurrentGoals}}
Past Performance: {{.PastPerformance}}

Based on this information, provide a list of suggested new goals, and then explain your reasoning for each suggestion.
Make sure each suggestion is realistic and achievable for the user. Structure your response clearly with headings for "Suggested Goals" and "Reasoning".
`))

type Input struct {
	CurrentGoals    string `json:"currentGoals"`
	PastPerformance string `json:"pastPerformance"`
}

// Validate counts raw characters, whitespace included.
func (in Input) Validate() error {
	if utf8.RuneCountInString(in.CurrentGoals) < MinInputLength {
		return apperr.NewValidation("currentGoals", "must be at least 10 characters")
	}
	if utf8.RuneCountInString(in.PastPerformance) < MinInputLength {
		return apperr.NewValidation("pastPerformance", "must be at least 10 characters")
	}
	return nil
}

// Prompt renders the instruction sent to the generator.
func Prompt(in Input) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type Client struct {
	gen     Generator
	timeout time.Duration
}

// New returns a Client. A zero timeout leaves the deadline to the caller.
func New(gen Generator, timeout time.Duration) *Client {
	return &Client{gen: gen, timeout: timeout}
}

// Suggest asks the generator for new goals. The model output is returned
// as is.
func (c *Client) Suggest(ctx context.Context, currentGoals, pastPerformance string) (string, error) {
	in := Input{CurrentGoals: currentGoals, PastPerformance: pastPerformance}
	if err := in.Validate(); err != nil {
		return "", err
	}

	prompt, err := Prompt(in)
	if err != nil {
		return "", c.failed(err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", c.failed(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", c.failed(ErrEmptySuggestion)
	}

	logger.Debug("Suggest: generated suggestion",
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}

func (c *Client) failed(err error) error {
	logger.Error("Suggest: generation failed", err)
	return apperr.Wrap(apperr.CodeSuggestionFailed,
		"Failed to get AI suggestions. Please try again.", err)
}
