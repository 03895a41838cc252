package graph

import (
	"maps"

	"github.com/hupe1980/canvasmesh/core"
)

// Payload is the value an edge carries from its source to its target.
type Payload struct {
	Text string
	// Values are named template values forwarded with the text.
	Values map[string]string
	// Items holds every iteration's text for edges leaving a loop.
	Items []string
	// Transcript is the conversation that produced Text, if any.
	Transcript core.Transcript
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	out := Payload{Text: p.Text}
	if p.Values != nil {
		out.Values = maps.Clone(p.Values)
	}
	if p.Items != nil {
		out.Items = append([]string(nil), p.Items...)
	}
	if p.Transcript != nil {
		out.Transcript = p.Transcript.Clone()
	}
	return out
}
