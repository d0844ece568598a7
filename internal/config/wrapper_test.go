package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWrapper(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		def, err := ParseWrapper([]byte(`
name: cloud-ops
agent: azure
context:
  subscription: prod-01
  region: westeurope
`))
		require.NoError(t, err)
		assert.Equal(t, "cloud-ops", def.Name)
		assert.Equal(t, "azure", def.Agent)
		assert.Equal(t, map[string]string{"subscription": "prod-01", "region": "westeurope"}, def.Context)
	})

	t.Run("context is optional", func(t *testing.T) {
		def, err := ParseWrapper([]byte("name: plain\nagent: shell\n"))
		require.NoError(t, err)
		assert.Empty(t, def.Context)
	})

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "missing agent", doc: "name: x\n", wantErr: "agent"},
		{name: "invalid agent name", doc: "name: x\nagent: \"bad agent\"\n", wantErr: "schema validation"},
		{name: "non string context value", doc: "name: x\nagent: shell\ncontext:\n  nested:\n    a: b\n", wantErr: "schema validation"},
		{name: "unknown key", doc: "name: x\nagent: shell\nextra: 1\n", wantErr: "schema validation"},
		{name: "malformed yaml", doc: "name: [x\n", wantErr: "failed to parse wrapper YAML"},
		{name: "empty", doc: "", wantErr: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWrapper([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadWrapper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: w\nagent: relay\n"), 0644))

	def, err := LoadWrapper(path)
	require.NoError(t, err)
	assert.Equal(t, "relay", def.Agent)

	_, err = LoadWrapper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read wrapper file")
}
