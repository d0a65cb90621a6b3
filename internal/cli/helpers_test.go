package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	seriesProject    = "../../testdata/projects/series.yaml"
	timerProject     = "../../testdata/projects/timer_b.yaml"
	duplicateProject = "../../testdata/projects/timer_duplicate.yaml"
	scenariosDir     = "../../testdata/scenarios"
)

// execute runs the root command with args and returns stdout, stderr
// and the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type rawResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// decodeResponse parses a JSON CLI response and decodes its data into T.
func decodeResponse[T any](t *testing.T, out string) (T, rawResponse) {
	t.Helper()
	var resp rawResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)

	var data T
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return data, resp
}
