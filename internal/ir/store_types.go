package ir

import (
	"bytes"
	"encoding/json"
)

// RunRecord describes one recorded engine session.
type RunRecord struct {
	ID            string `json:"id"`
	ProjectName   string `json:"project_name"`
	ProjectDigest string `json:"project_digest"`
	PeriodMillis  int64  `json:"period_ms"`
}

// ScanRecord is the persisted form of one published snapshot.
type ScanRecord struct {
	RunID  string `json:"run_id"`
	Seq    int64  `json:"seq"`
	Scans  int64  `json:"scans"`
	Mode   Mode   `json:"mode"`
	Digest string `json:"digest"`
	Tags   []Tag  `json:"tags,omitempty"`
}

// TagSample is one recorded value of a single tag.
type TagSample struct {
	Seq    int64 `json:"seq"`
	Value  Value `json:"value"`
	Forced bool  `json:"forced"`
}

func jsonMarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
