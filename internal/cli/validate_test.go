package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plcscan/internal/compiler"
)

const warningProject = `
name: warn
networks:
  - id: n1
    rungs:
      - id: r1
        elements:
          - {id: c1, type: "NO", tagId: ghost}
          - {id: k1, type: COIL, tagId: q}
tags:
  - {id: q, address: Q0.0, name: Q, dataType: BOOL, value: false}
`

func TestValidate_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", seriesProject)
	require.NoError(t, err)
	assert.Equal(t, "✓ series valid (3 tags, 3 elements)\n", out)
}

func TestValidate_ValidJSON(t *testing.T) {
	out, _, err := execute(t, "validate", seriesProject, "--format", "json")
	require.NoError(t, err)

	result, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, "series", result.Project)
	assert.Equal(t, 3, result.Tags)
	assert.Equal(t, 3, result.Elements)
	assert.Empty(t, result.Warnings)
}

func TestValidate_Warnings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "warn.yaml", warningProject)

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ warn valid (1 tags, 2 elements)")
	assert.Contains(t, out, `W201 c1.tagId: tag "ghost" does not exist; reads as 0`)
}

func TestValidate_StrictWarnings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "warn.yaml", warningProject)

	out, _, err := execute(t, "validate", path, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ warn: 1 warning(s)")

	out, _, err = execute(t, "validate", path, "--strict", "--format", "json")
	require.Error(t, err)
	result, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeWarnings, resp.Error.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, compiler.WarnDanglingTagRef, result.Warnings[0].Code)
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	badYAML := writeFile(t, dir, "bad.yaml", "name: [")
	badExt := writeFile(t, dir, "project.toml", "name = 1")

	tests := []struct {
		name     string
		path     string
		exitCode int
		code     string
	}{
		{"duplicate element", duplicateProject, ExitFailure, ErrCodeDuplicateElement},
		{"missing file", "/nonexistent/project.yaml", ExitCommandError, ErrCodeNotFound},
		{"directory", dir, ExitCommandError, ErrCodeNotFound},
		{"bad yaml", badYAML, ExitCommandError, ErrCodeLoadFailed},
		{"unsupported format", badExt, ExitCommandError, ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")

			out, _, err = execute(t, "validate", tt.path, "--format", "json")
			require.Error(t, err)
			_, resp := decodeResponse[ValidationResult](t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestValidate_MissingArg(t *testing.T) {
	_, _, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
}

func TestMapLinkErrorCode(t *testing.T) {
	tests := []struct {
		code compiler.LinkErrorCode
		want string
	}{
		{compiler.ErrCodeCycleDetected, ErrCodeCycle},
		{compiler.ErrCodeDuplicateElement, ErrCodeDuplicateElement},
		{compiler.ErrCodeDuplicateTag, ErrCodeDuplicateTag},
		{compiler.ErrCodeInvalidTag, ErrCodeInvalidTag},
		{compiler.ErrCodeMalformedElement, ErrCodeMalformed},
		{compiler.ErrCodeUnknownKind, ErrCodeUnknownKind},
		{"SOMETHING_ELSE", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapLinkErrorCode(tt.code))
		})
	}
}
