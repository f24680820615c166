package schemasassets

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"
)

// ErrValidationFailed indicates a document failed schema validation.
var ErrValidationFailed = errors.New("schema validation failed")

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/jobs/0").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors for one document.
type ValidationErrors struct {
	Document string
	Errors   []ValidationError
}

// Error implements error interface.
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return e.Document + " validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Document + ": " + e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s validation failed with %d errors:\n", e.Document, len(e.Errors))
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the sentinel for errors.Is checks.
func (e *ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

var (
	validatorsMu sync.Mutex
	validators   = map[string]*schema.Validator{}
)

// ValidateJSON checks jsonData against the given embedded schema.
//
// document names the schema in error messages and keys the compiled
// validator cache.
func ValidateJSON(document string, schemaBytes, jsonData []byte) error {
	v, err := validatorFor(document, schemaBytes)
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("%s schema validation error: %w", document, err)
	}
	if len(diags) == 0 {
		return nil
	}

	out := &ValidationErrors{Document: document}
	for _, d := range diags {
		// Only include errors, not warnings
		if d.Severity == schema.SeverityError {
			out.Errors = append(out.Errors, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(out.Errors) == 0 {
		return nil
	}
	return out
}

// ValidateYAML converts YAML input to JSON and validates it.
func ValidateYAML(document string, schemaBytes, yamlData []byte) error {
	jsonData, err := YAMLToJSON(yamlData)
	if err != nil {
		return fmt.Errorf("%s: %w", document, err)
	}
	return ValidateJSON(document, schemaBytes, jsonData)
}

// YAMLToJSON converts YAML data to JSON.
//
// Non-finite floats (.inf, .nan) have no JSON representation and are
// emitted as null.
func YAMLToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	jsonData, err := json.Marshal(sanitize(raw))
	if err != nil {
		return nil, fmt.Errorf("convert YAML to JSON: %w", err)
	}
	return jsonData, nil
}

func sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = sanitize(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = sanitize(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = sanitize(item)
		}
		return t
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil
		}
		return t
	default:
		return v
	}
}

func validatorFor(document string, schemaBytes []byte) (*schema.Validator, error) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()

	if v, ok := validators[document]; ok {
		return v, nil
	}
	if len(schemaBytes) == 0 {
		return nil, fmt.Errorf("embedded %s schema is empty", document)
	}
	v, err := schema.NewValidator(schemaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", document, err)
	}
	validators[document] = v
	return v, nil
}
