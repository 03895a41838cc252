package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/hupe1980/canvasmesh/internal/util"
	"github.com/hupe1980/canvasmesh/model"
)

// ErrNoStore is returned by nodes that need a content store when none is configured.
var ErrNoStore = errors.New("graph: no content store configured")

// InputOp emits the node text. Inside a ForEach loop an empty input node
// emits the current item.
type InputOp struct{}

func (InputOp) Name() string { return "input" }

func (InputOp) run(_ context.Context, _ Env, in Inputs) (Result, error) {
	text, err := util.RenderTemplate(in.Text, in.Values)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		text = in.Values["item"]
	}
	return Result{Output: Payload{Text: text}}, nil
}

// CompletionOp sends the node prompt to the completion provider. Model
// overrides the provider's default model when set.
type CompletionOp struct {
	Model string
}

func (CompletionOp) Name() string { return "completion" }

func (o CompletionOp) run(ctx context.Context, env Env, in Inputs) (Result, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return Result{}, err
	}

	var contents []core.Content
	if len(in.System) > 0 {
		contents = append(contents, core.NewTextContent(core.RoleSystem, strings.Join(in.System, "\n\n")))
	}
	for _, c := range in.Transcript {
		if len(in.System) > 0 && c.Role == core.RoleSystem {
			continue
		}
		contents = append(contents, c)
	}
	contents = append(contents, core.NewTextContent(core.RoleUser, prompt))

	answer := prompt
	if !env.Mock() {
		resp, err := env.Complete(ctx, in.NodeID, model.Request{Model: o.Model, Contents: contents})
		if err != nil {
			return Result{}, err
		}
		answer = resp.Content.Text()
	}

	transcript := append(core.Transcript(nil), contents...)
	transcript = append(transcript, core.NewTextContent(core.RoleAssistant, answer))
	return Result{Output: Payload{Text: answer, Transcript: transcript}}, nil
}

// buildPrompt renders the node text as a template when it references values;
// otherwise the positional inputs are prepended to it.
func buildPrompt(in Inputs) (string, error) {
	if strings.Contains(in.Text, "{{") {
		return util.RenderTemplate(in.Text, in.Values)
	}
	parts := make([]string, 0, len(in.Positional)+1)
	for _, p := range in.Positional {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if strings.TrimSpace(in.Text) != "" {
		parts = append(parts, in.Text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// ChooseOp routes its input to the outgoing edge whose label matches it,
// falling back to an unlabeled edge. Edges that are not selected reject.
// Dry runs select the first edge when nothing matches.
type ChooseOp struct{}

func (ChooseOp) Name() string { return "choose" }

func (ChooseOp) run(_ context.Context, env Env, in Inputs) (Result, error) {
	value := strings.Join(in.Positional, "\n")
	key := strings.Trim(value, " \t\r\n.!\"'")

	chosen := ""
	for _, r := range in.Outgoing {
		if r.Label != "" && strings.EqualFold(strings.TrimSpace(r.Label), key) {
			chosen = r.EdgeID
			break
		}
	}
	if chosen == "" {
		for _, r := range in.Outgoing {
			if r.Label == "" {
				chosen = r.EdgeID
				break
			}
		}
	}
	if chosen == "" && env.Mock() && len(in.Outgoing) > 0 {
		chosen = in.Outgoing[0].EdgeID
	}

	out := Payload{Text: value, Transcript: in.Transcript}
	routes := map[string]Payload{}
	if chosen != "" {
		routes[chosen] = out
	}
	return Result{Output: out, Routes: routes}, nil
}

// DistributeOp splits its input into items and sends item k along the k-th
// outgoing edge. Surplus edges reject.
type DistributeOp struct{}

func (DistributeOp) Name() string { return "distribute" }

func (DistributeOp) run(_ context.Context, _ Env, in Inputs) (Result, error) {
	joined := strings.Join(in.Positional, "\n")
	items := util.SplitItems(joined)

	routes := make(map[string]Payload, len(in.Outgoing))
	for i, r := range in.Outgoing {
		if i >= len(items) {
			break
		}
		routes[r.EdgeID] = Payload{Text: items[i], Values: map[string]string{"index": fmt.Sprint(i)}}
	}
	return Result{Output: Payload{Text: joined, Items: items}, Routes: routes}, nil
}

// FormatOp renders the node text as a template. The joined positional
// inputs are available as {{.input}}.
type FormatOp struct{}

func (FormatOp) Name() string { return "format" }

func (FormatOp) run(_ context.Context, _ Env, in Inputs) (Result, error) {
	values := make(map[string]string, len(in.Values)+1)
	for k, v := range in.Values {
		values[k] = v
	}
	if _, ok := values["input"]; !ok {
		values["input"] = strings.Join(in.Positional, "\n")
	}
	text, err := util.RenderTemplate(in.Text, values)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: Payload{Text: text}}, nil
}

// OutputOp displays its inputs and, when Path is set, writes them to the
// content store.
type OutputOp struct {
	Path string
}

func (OutputOp) Name() string { return "output" }

func (o OutputOp) run(ctx context.Context, env Env, in Inputs) (Result, error) {
	parts := append(append([]string(nil), in.Positional...), in.Log...)
	text := strings.Join(parts, "\n\n")

	env.Logger().Info("Output node produced text", "node", in.NodeID, "path", o.Path, "length", len(text))
	if o.Path != "" && !env.Mock() {
		store := env.Store()
		if store == nil {
			return Result{}, ErrNoStore
		}
		if err := store.Write(ctx, o.Path, text); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", o.Path, err)
		}
	}
	return Result{Output: Payload{Text: text, Transcript: in.Transcript}}, nil
}

// ReferenceOp reads a note from the content store. Front matter properties
// become template values downstream.
type ReferenceOp struct {
	Path string
}

func (ReferenceOp) Name() string { return "reference" }

func (o ReferenceOp) run(ctx context.Context, env Env, _ Inputs) (Result, error) {
	if env.Mock() {
		return Result{Output: Payload{Text: o.Path}}, nil
	}
	store := env.Store()
	if store == nil {
		return Result{}, ErrNoStore
	}

	if nr, ok := store.(core.NoteReader); ok {
		note, err := nr.ReadNote(ctx, o.Path)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", o.Path, err)
		}
		values := make(map[string]string, len(note.Properties))
		for k, v := range note.Properties {
			values[k] = fmt.Sprint(v)
		}
		return Result{Output: Payload{Text: note.Body, Values: values}}, nil
	}

	text, err := store.Read(ctx, o.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", o.Path, err)
	}
	return Result{Output: Payload{Text: text}}, nil
}
