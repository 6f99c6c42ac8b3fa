package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	out, err = RenderTemplate(`{{.name | upper}} <{{default "n/a" .missing}}> {{join ", " .items}} {{title "hELLO"}}`, map[string]any{
		"name":  "inventory",
		"items": []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INVENTORY <n/a> a, b Hello", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
