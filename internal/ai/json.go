package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

// ExtractJSON strips markdown fences (with or without a language tag) and any prose
// surrounding the outermost JSON object.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.Index(raw, "\n"); idx >= 0 {
			first := strings.TrimSpace(raw[:idx])
			if len(first) < 20 && !strings.ContainsAny(first, " {") {
				raw = raw[idx+1:]
			}
		}
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			raw = raw[start : end+1]
		}
	}
	return raw
}

// Schema is a compiled JSON schema for one kind of evaluator reply.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchema compiles a JSON schema document.
func NewSchema(name, source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// MustSchema is like NewSchema but panics on error. Used for embedded schemas.
func MustSchema(name, source string) *Schema {
	s, err := NewSchema(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate returns every schema violation found in doc.
func (s *Schema) Validate(doc any) []FieldError {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []FieldError{{Field: s.name, Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fields = append(fields, FieldError{Field: desc.Field(), Message: desc.Description()})
	}
	return fields
}

// ParseObject extracts the JSON object from a raw reply and validates it against
// schema when one is given.
func ParseObject(phase Phase, raw string, schema *Schema) (map[string]any, error) {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return nil, &MalformedResponseError{Phase: phase, Reason: "empty response", Raw: raw}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &MalformedResponseError{Phase: phase, Reason: "response is not a JSON object", Raw: raw, Err: err}
	}
	if doc == nil {
		return nil, &MalformedResponseError{Phase: phase, Reason: "response is null", Raw: raw}
	}

	if schema != nil {
		if fields := schema.Validate(doc); len(fields) > 0 {
			return nil, &MalformedResponseError{Phase: phase, Reason: "schema validation failed", Fields: fields, Raw: raw}
		}
	}

	return doc, nil
}

// Decode copies a parsed reply into out using its json tags. Numbers given as
// strings are accepted.
func Decode(phase Phase, doc map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build %s decoder: %w", phase, err)
	}
	if err := decoder.Decode(doc); err != nil {
		return &MalformedResponseError{Phase: phase, Reason: "unexpected field types", Err: err}
	}
	return nil
}

// DecodeJSON runs ParseObject followed by Decode.
func DecodeJSON(phase Phase, raw string, schema *Schema, out any) error {
	doc, err := ParseObject(phase, raw, schema)
	if err != nil {
		return err
	}
	if err := Decode(phase, doc, out); err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			malformed.Raw = raw
		}
		return err
	}
	return nil
}

// CoerceFloat converts loosely typed JSON values to float64, returning NaN when
// the value is not numeric.
func CoerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// CoerceString returns string values as is and formats scalars, ignoring anything else.
func CoerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
