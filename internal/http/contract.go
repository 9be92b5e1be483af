package http

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// analyzeResponseSchema is the shape the web UI reads from POST /api/analyze.
func analyzeResponseSchema() map[string]any {
	number01 := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	detection := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"type", "confidence", "boundingBox"},
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []string{"face", "text", "license_plate", "document"},
			},
			"confidence": number01,
			"boundingBox": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"x", "y", "width", "height"},
				"properties": map[string]any{
					"x":      number01,
					"y":      number01,
					"width":  number01,
					"height": number01,
				},
			},
			"text": map[string]any{"type": "string"},
		},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"success", "detections", "riskAnalysis", "explanation"},
		"properties": map[string]any{
			"success":    map[string]any{"const": true},
			"detections": map[string]any{"type": "array", "items": detection},
			"riskAnalysis": map[string]any{
				"type":     "object",
				"required": []string{"personalData", "identityRisk", "locationRisk"},
				"properties": map[string]any{
					"personalData": map[string]any{"type": "string"},
					"identityRisk": map[string]any{"type": "string"},
					"locationRisk": map[string]any{"type": "string"},
				},
			},
			"explanation": map[string]any{"type": "string", "minLength": 1},
		},
	}
}

// ContractValidator checks outgoing analyze responses against the UI schema.
type ContractValidator struct {
	schema *jsonschema.Schema
}

func NewContractValidator() (*ContractValidator, error) {
	b, err := json.Marshal(analyzeResponseSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analyze_response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analyze_response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ContractValidator{schema: schema}, nil
}

func (v *ContractValidator) Validate(resp AnalyzeResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match ui contract: %w", err)
	}
	return nil
}
