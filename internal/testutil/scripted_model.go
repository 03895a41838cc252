package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/model"
)

// ScriptedModel answers prompts from a script of substring rules. The first
// rule whose needle occurs in the last message wins; without a match the
// model echoes the prompt in upper case. Token usage counts words.
//
//	m := NewScriptedModel("scripted").When("weather", "sunny").When("mood", "happy")
type ScriptedModel struct {
	name  string
	mu    sync.Mutex
	rules [][2]string
	calls []model.Request
}

// NewScriptedModel creates a model with an empty script.
func NewScriptedModel(name string) *ScriptedModel {
	return &ScriptedModel{name: name}
}

// When adds a rule (chainable).
func (m *ScriptedModel) When(needle, answer string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, [2]string{needle, answer})
	return m
}

// Calls returns the requests received so far.
func (m *ScriptedModel) Calls() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.calls...)
}

// Prompts returns the last message of every request received so far.
func (m *ScriptedModel) Prompts() []string {
	var out []string
	for _, c := range m.Calls() {
		if len(c.Contents) > 0 {
			out = append(out, c.Contents[len(c.Contents)-1].Text())
		}
	}
	return out
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	rules := append([][2]string(nil), m.rules...)
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		prompt := ""
		if len(req.Contents) > 0 {
			prompt = req.Contents[len(req.Contents)-1].Text()
		}
		answer := strings.ToUpper(prompt)
		for _, r := range rules {
			if strings.Contains(prompt, r[0]) {
				answer = r[1]
				break
			}
		}

		promptTokens := 0
		for _, c := range req.Contents {
			promptTokens += len(strings.Fields(c.Text()))
		}
		completionTokens := len(strings.Fields(answer))
		out <- model.Response{
			ID:           core.NewID(),
			Model:        m.name,
			Content:      core.NewTextContent(core.RoleAssistant, answer),
			FinishReason: "stop",
			Usage: &model.TokenUsage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      promptTokens + completionTokens,
			},
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted"}
}
