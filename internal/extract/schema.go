package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// BuildResultJSONSchema returns the JSON-Schema every persisted result must
// satisfy, as a generic map.
func BuildResultJSONSchema() map[string]any {
	optString := map[string]any{"type": "string"}
	optNumber := map[string]any{"type": "number"}
	nullableString := map[string]any{"type": []string{"string", "null"}}
	matchProps := func(props map[string]any) map[string]any {
		props["matched_template_id"] = nullableString
		props["matched_template_name"] = nullableString
		props["match_confidence"] = map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
		return props
	}

	room := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":      optString,
			"area":      optNumber,
			"room_type": optString,
		},
	}
	floor := map[string]any{
		"type":     "object",
		"required": []string{"name", "rooms"},
		"properties": map[string]any{
			"name":         optString,
			"floor_number": map[string]any{"type": "integer"},
			"total_area":   optNumber,
			"rooms":        map[string]any{"type": "array", "items": room},
		},
	}
	area := map[string]any{
		"type":     "object",
		"required": []string{"id", "name"},
		"properties": map[string]any{
			"id":           optString,
			"name":         optString,
			"number":       optString,
			"level":        optString,
			"floor_number": map[string]any{"type": "integer"},
			"area_sqm":     optNumber,
			"category":     optString,
		},
	}
	equipment := map[string]any{
		"type":     "object",
		"required": []string{"id", "name", "match_confidence"},
		"properties": matchProps(map[string]any{
			"id":           optString,
			"name":         optString,
			"type":         optString,
			"category":     optString,
			"manufacturer": optString,
			"model":        optString,
			"level":        optString,
		}),
	}
	material := map[string]any{
		"type":     "object",
		"required": []string{"id", "name", "match_confidence"},
		"properties": matchProps(map[string]any{
			"id":       optString,
			"name":     optString,
			"type":     optString,
			"category": optString,
			"level":    optString,
		}),
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"floors", "summary", "areas", "equipment", "materials", "raw_object_count"},
		"properties": map[string]any{
			"floors":           map[string]any{"type": "array", "items": floor},
			"summary":          map[string]any{"type": "object"},
			"areas":            map[string]any{"type": "array", "items": area},
			"equipment":        map[string]any{"type": "array", "items": equipment},
			"materials":        map[string]any{"type": "array", "items": material},
			"raw_object_count": map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

var resultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(BuildResultJSONSchema())
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON checks raw JSON against the result schema.
func ValidateJSON(data []byte) error {
	schema, err := resultSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateResult normalizes res and checks it against the result schema.
func ValidateResult(res *entity.ExtractionResult) error {
	if res == nil {
		return fmt.Errorf("extraction result is nil")
	}
	res.Normalize()
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return ValidateJSON(b)
}
