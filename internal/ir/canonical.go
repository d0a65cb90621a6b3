package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON used for snapshot digests and
// golden files.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Numbers use the shortest decimal form; NaN and Inf are rejected
//  5. null is rejected
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		return marshalCanonicalNumber(buf, val)
	case Value:
		if val.IsBool() {
			buf.WriteString(strconv.FormatBool(val.Truthy()))
			return nil
		}
		return marshalCanonicalNumber(buf, val.Float())
	case Mode:
		return marshalCanonicalString(buf, string(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeysUTF16(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func marshalCanonicalNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number in canonical JSON: %v", f)
	}
	if f == 0 {
		// normalizes -0
		f = 0
	}
	buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// marshalCanonicalString writes a JSON string with NFC normalization and
// without HTML escaping. U+2028 and U+2029 are written literally.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	if bytes.Contains(out, []byte(`\u202`)) {
		out = []byte(unescapeLineSeparators(string(out)))
	}
	buf.Write(out)
	return nil
}

// unescapeLineSeparators rewrites \u2028 and \u2029 escapes produced by
// encoding/json back into literal characters, leaving escaped backslashes
// followed by the same text untouched.
func unescapeLineSeparators(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if s[i+1] == 'u' && i+6 <= len(s) && (s[i+2:i+6] == "2028" || s[i+2:i+6] == "2029") {
				if s[i+5] == '8' {
					b.WriteString("\u2028")
				} else {
					b.WriteString("\u2029")
				}
				i += 5
				continue
			}
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// sortedKeysUTF16 returns the map keys ordered by UTF-16 code units.
func sortedKeysUTF16(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}
