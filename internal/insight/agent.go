package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/portfolio"
)

type Config struct {
	Enabled    bool
	Model      string
	APIKey     string
	BaseURL    string
	ByAzure    bool
	APIVersion string
	Timeout    time.Duration
}

const (
	ModeLLM   = "llm"
	ModeRules = "rules"
)

// Insight is a short commentary on a snapshot.
type Insight struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Risks      []string `json:"risks"`
	Mode       string   `json:"mode"`
	Model      string   `json:"model,omitempty"`
}

type generator interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Agent struct {
	enabled        bool
	model          generator
	modelName      string
	disabledReason string
}

func New(cfg Config) *Agent {
	if !cfg.Enabled {
		return &Agent{disabledReason: "disabled by config"}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		logger.L.Warn("insight agent disabled: missing api key or model")
		return &Agent{disabledReason: "api_key or model missing"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	m, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		logger.L.Error("insight agent init failed", "error", err)
		return &Agent{disabledReason: "init failed"}
	}
	return &Agent{enabled: true, model: m, modelName: cfg.Model}
}

func (a *Agent) Enabled() bool { return a != nil && a.enabled && a.model != nil }

func (a *Agent) Mode() (mode, reason string) {
	if a.Enabled() {
		return ModeLLM, ""
	}
	if a == nil || a.disabledReason == "" {
		return ModeRules, "not configured"
	}
	return ModeRules, a.disabledReason
}

// Evaluate comments on the snapshot. When the model is unavailable or its
// answer is unusable, the rule-based insight is returned along with the error.
func (a *Agent) Evaluate(ctx context.Context, snap portfolio.Snapshot, currency string) (Insight, error) {
	if !a.Enabled() {
		return Fallback(snap, currency), nil
	}

	payload, err := json.Marshal(summarize(snap, currency))
	if err != nil {
		return Fallback(snap, currency), fmt.Errorf("marshal input: %w", err)
	}

	system := `You are a portfolio analyst. Output ONLY valid JSON.
Keys: summary (string, at most two sentences), highlights (array of strings), risks (array of strings).
Base every statement on the input figures. No advice to buy or sell.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Input: %s", string(payload))),
	}
	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		logLLMError(err)
		return Fallback(snap, currency), err
	}
	if resp == nil {
		return Fallback(snap, currency), errors.New("empty model response")
	}

	out, err := parseInsight(strings.TrimSpace(resp.Content))
	if err != nil {
		logger.L.Warn("insight response unusable", "error", err)
		return Fallback(snap, currency), err
	}
	out = sanitize(out)
	out.Mode = ModeLLM
	out.Model = a.modelName
	return out, nil
}

func parseInsight(text string) (Insight, error) {
	var out Insight
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	jsonStr := extractFirstJSONObject(text)
	if jsonStr == "" {
		return Insight{}, fmt.Errorf("no json object found")
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return Insight{}, fmt.Errorf("parse insight: %w", err)
	}
	return out, nil
}

func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func sanitize(in Insight) Insight {
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Highlights == nil {
		in.Highlights = []string{}
	}
	if in.Risks == nil {
		in.Risks = []string{}
	}
	return in
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		logger.L.Error("insight api error", "status", apiErr.HTTPStatusCode, "message", msg)
		return
	}
	logger.L.Error("insight error", "error", err)
}
