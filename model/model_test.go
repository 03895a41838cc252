package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/canvasmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_Final(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("ping", "pong")

	resp, err := Collect(context.Background(), m, Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "ping")},
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content.Text())
	assert.Equal(t, "mock-1", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 1, resp.Usage.PromptTokens)
	assert.Equal(t, 1, resp.Usage.CompletionTokens)
	assert.Len(t, m.Calls(), 1)
}

func TestCollect_ModelOverride(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	resp, err := Collect(context.Background(), m, Request{
		Model:    "mock-2",
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "a b c")},
	})
	require.NoError(t, err)
	assert.Equal(t, "mock-2", resp.Model)
	assert.Equal(t, "Mock response to: a b c", resp.Content.Text())
}

func TestCollect_Error(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	sentinel := errors.New("provider down")
	m.FailWith(sentinel)

	_, err := Collect(context.Background(), m, Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "x")},
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestCollect_NoContents(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	_, err := Collect(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMockModel("mock-1", "mock")
	_, err := Collect(ctx, m, Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "x")},
		Stream:   true,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
