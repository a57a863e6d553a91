package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ComputeRequestSchema describes POST /compute_and_send.
const ComputeRequestSchema = `{
	"type": "object",
	"required": ["uuids"],
	"properties": {
		"uuids": {
			"type": "array",
			"minItems": 1,
			"items": {"type": ["string", "number", "boolean", "null"]}
		},
		"oracle_url": {"type": ["string", "null"]}
	}
}`

// ScoreRequestSchema describes POST /score. An absent or empty items list
// scores every lendee in the sources.
const ScoreRequestSchema = `{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["lendee_id"],
				"properties": {
					"lendee_id": {"type": ["string", "number"]},
					"lendee_count": {"type": "number", "minimum": 0},
					"total_loan_amount": {"type": "number", "minimum": 0},
					"avg_loan_per_lendee": {"type": "number", "minimum": 0},
					"defaulted": {"type": ["boolean", "number"]}
				}
			}
		}
	}
}`

// ComputeJobSchema describes the variables of a compute-and-send job.
const ComputeJobSchema = `{
	"type": "object",
	"required": ["uuids"],
	"properties": {
		"uuids": {
			"type": "array",
			"minItems": 1,
			"items": {"type": ["string", "number", "boolean", "null"]}
		},
		"oracleUrl": {"type": ["string", "null"]}
	}
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins every error into one line.
func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

// Validator checks JSON documents against one compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schema string) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// MustValidator is NewValidator for schemas known at compile time.
func MustValidator(schema string) *Validator {
	v, err := NewValidator(schema)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a raw JSON document. The error is non-nil only when the
// document is not JSON at all.
func (v *Validator) Validate(document []byte) (*ValidationResult, error) {
	return v.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateValue checks an already decoded value such as job variables.
func (v *Validator) ValidateValue(value interface{}) (*ValidationResult, error) {
	return v.validate(gojsonschema.NewGoLoader(value))
}

func (v *Validator) validate(loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := v.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
