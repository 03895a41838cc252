package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Summarize {{.topic}} in {{default "english" .lang}}`, map[string]string{"topic": "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize Go in english", out)

	out, err = RenderTemplate(`{{upper .missing}}|{{.x}}`, map[string]string{"x": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "|<b>", out)

	out, err = RenderTemplate(`{{join ", " (items .list)}}`, map[string]string{"list": "- a\n- b"})
	require.NoError(t, err)
	assert.Equal(t, "a, b", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

func TestSplitItems(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitItems("a\n\n b \n* c"))
	assert.Equal(t, []string{"x", "2", `{"k":1}`}, SplitItems(`["x", 2, {"k":1}]`))
	assert.Equal(t, []string{"[not json"}, SplitItems("[not json"))
	assert.Nil(t, SplitItems("   "))
	assert.Empty(t, SplitItems("[]"))
}
