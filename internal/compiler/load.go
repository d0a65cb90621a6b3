package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/plcscan/internal/ir"
)

//go:embed schema.cue
var projectSchema string

// LoadProject reads a project file. The format is chosen by extension:
// .cue, .yaml/.yml or .json.
func LoadProject(path string) (ir.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Project{}, &LoadError{Path: path, Message: err.Error()}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseProjectCUE(path, data)
	case ".yaml", ".yml":
		p, err := ParseProjectYAML(data)
		if err != nil {
			return ir.Project{}, &LoadError{Path: path, Message: err.Error()}
		}
		return p, nil
	case ".json":
		p, err := ParseProjectJSON(data)
		if err != nil {
			return ir.Project{}, &LoadError{Path: path, Message: err.Error()}
		}
		return p, nil
	default:
		return ir.Project{}, &LoadError{Path: path, Message: fmt.Sprintf("unsupported project format %q", filepath.Ext(path))}
	}
}

// ParseProjectJSON decodes a project in the editor's JSON shape.
// Unknown top-level fields are rejected.
func ParseProjectJSON(data []byte) (ir.Project, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p ir.Project
	if err := dec.Decode(&p); err != nil {
		return ir.Project{}, fmt.Errorf("decode project: %w", err)
	}
	return p, nil
}

// ParseProjectYAML decodes a YAML project. The document must have the
// same shape as the JSON encoding.
func ParseProjectYAML(data []byte) (ir.Project, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ir.Project{}, fmt.Errorf("parse yaml: %w", err)
	}
	normalized, err := normalizeYAML(raw)
	if err != nil {
		return ir.Project{}, err
	}
	js, err := json.Marshal(normalized)
	if err != nil {
		return ir.Project{}, fmt.Errorf("convert yaml: %w", err)
	}
	return ParseProjectJSON(js)
}

// normalizeYAML converts yaml.v3 generic values into types encoding/json
// accepts (string-keyed maps).
func normalizeYAML(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("yaml: non-string key %v", k)
			}
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// ParseProjectCUE evaluates a CUE project file. The project is read from
// a top-level "project" field when present, otherwise from the file root,
// and is unified with the embedded #Project schema before decoding.
func ParseProjectCUE(filename string, data []byte) (ir.Project, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(projectSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return ir.Project{}, fmt.Errorf("compile project schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return ir.Project{}, formatCUEError(filename, err)
	}

	if p := v.LookupPath(cue.ParsePath("project")); p.Exists() {
		v = p
	}

	v = schema.LookupPath(cue.ParsePath("#Project")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.Project{}, formatCUEError(filename, err)
	}

	js, err := v.MarshalJSON()
	if err != nil {
		return ir.Project{}, formatCUEError(filename, err)
	}

	p, err := ParseProjectJSON(js)
	if err != nil {
		return ir.Project{}, &LoadError{Path: filename, Message: err.Error()}
	}
	return p, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: filename, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Path: filename, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
