package intent

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const decompositionSchemaURL = "https://moldubot.local/schemas/intent-decomposition.schema.json"

// decompositionSchema checks the shape of model output before decoding.
// Step tokens are free strings here; unknown ones are dropped later.
const decompositionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "original_query": {"type": "string"},
    "steps": {"type": "array", "items": {"type": "string"}},
    "summary_line_target": {"type": "integer", "minimum": 1, "maximum": 20},
    "date_filter": {
      "type": "object",
      "properties": {
        "mode": {"enum": ["none", "relative", "absolute"]},
        "relative": {"type": "string"},
        "start": {"type": "string"},
        "end": {"type": "string"}
      }
    },
    "missing_slots": {
      "type": "array",
      "items": {"enum": ["date", "start_time", "end_time", "attendee_count"]}
    }
  }
}`

func compileDecompositionSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(decompositionSchemaURL, strings.NewReader(decompositionSchema)); err != nil {
		return nil, fmt.Errorf("decomposition schema load failed: %w", err)
	}
	compiled, err := c.Compile(decompositionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("decomposition schema compile failed: %w", err)
	}
	return compiled, nil
}
