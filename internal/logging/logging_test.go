package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewWithWriter(&buf)

	s.Info("started", map[string]any{"addr": "127.0.0.1:3000"})
	s.Error("boom", nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "started", first["msg"])
	assert.Equal(t, "127.0.0.1:3000", first["addr"])
	assert.NotEmpty(t, first["time"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "error", second["level"])
}

func TestNewWithDirCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	s, err := NewWithDir(dir)
	require.NoError(t, err)
	defer s.Close()

	s.Info("hello", nil)

	data, err := os.ReadFile(filepath.Join(dir, "runtime.log"))
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "hello", entry["msg"])
}
