package suggest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/suggest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

var _ suggest.Generator = (*MockGenerator)(nil)

func TestClient_Suggest(t *testing.T) {
	const (
		goals = "Run a 5k, read 12 books"
		past  = "Ran three times a week in spring"
	)

	tests := []struct {
		name      string
		goals     string
		past      string
		setupMock func(*MockGenerator)
		want      string
		wantCode  string
	}{
		{
			name:  "success returns model text verbatim",
			goals: goals,
			past:  past,
			setupMock: func(m *MockGenerator) {
				m.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
					return strings.Contains(p, "Current Goals: "+goals) &&
						strings.Contains(p, "Past Performance: "+past) &&
						strings.Contains(p, `"Suggested Goals" and "Reasoning"`)
				})).Return("## Suggested Goals\n- Run a 10k\n", nil)
			},
			want: "## Suggested Goals\n- Run a 10k\n",
		},
		{
			name:     "short goals",
			goals:    "run",
			past:     past,
			wantCode: apperr.CodeValidation,
		},
		{
			name:     "short performance",
			goals:    goals,
			past:     "ok so far",
			wantCode: apperr.CodeValidation,
		},
		{
			name:  "padding counts toward length",
			goals: goals,
			past:  "   ok     ",
			setupMock: func(m *MockGenerator) {
				m.On("Generate", mock.Anything, mock.Anything).Return("Keep going.", nil)
			},
			want: "Keep going.",
		},
		{
			name:  "generator failure",
			goals: goals,
			past:  past,
			setupMock: func(m *MockGenerator) {
				m.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
			},
			wantCode: apperr.CodeSuggestionFailed,
		},
		{
			name:  "empty output",
			goals: goals,
			past:  past,
			setupMock: func(m *MockGenerator) {
				m.On("Generate", mock.Anything, mock.Anything).Return("  \n", nil)
			},
			wantCode: apperr.CodeSuggestionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			if tt.setupMock != nil {
				tt.setupMock(gen)
			}

			got, err := suggest.New(gen, time.Second).Suggest(context.Background(), tt.goals, tt.past)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, tt.wantCode), "got %v", err)
				assert.Empty(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			gen.AssertExpectations(t)
			if tt.setupMock == nil {
				gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestClient_Suggest_Timeout(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	_, err := suggest.New(gen, 10*time.Millisecond).
		Suggest(context.Background(), "Read more books", "Read two books last year")

	assert.True(t, apperr.Is(err, apperr.CodeSuggestionFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGemini_Generate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) == 0 || len(body.Contents[0].Parts) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"echo: ` +
			body.Contents[0].Parts[0].Text + `"}]}}]}`))
	}))
	defer srv.Close()

	gen, err := suggest.NewGemini(context.Background(), "test-key", "gemini-test", srv.URL+"/")
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", text)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-test:generateContent"), gotPath)
}

func TestNewGemini_NoKey(t *testing.T) {
	_, err := suggest.NewGemini(context.Background(), "", "", "")
	assert.ErrorIs(t, err, suggest.ErrNoAPIKey)
}

func TestClient_Suggest_Unconfigured(t *testing.T) {
	c := suggest.New(suggest.Unconfigured{}, 0)
	_, err := c.Suggest(context.Background(), "Run a 10k in May", "Ran 5k twice a week")
	assert.True(t, apperr.Is(err, apperr.CodeSuggestionFailed))
	assert.ErrorIs(t, err, suggest.ErrNoAPIKey)
}
