package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema pins the server event envelope shape: a non-empty "type"
// string plus an optional object "data". Kinds are deliberately not
// enumerated: staging adds event types without notice and unknown kinds must
// flow through, not fail validation.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "data": {"type": "object"}
  }
}`

var compiledEnvelope = jsonschema.MustCompileString("event_envelope.json", envelopeSchema)

// ValidateEnvelope checks a raw server message against the event envelope
// schema.
func ValidateEnvelope(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("ws: envelope not valid JSON: %w", err)
	}
	if err := compiledEnvelope.Validate(value); err != nil {
		return fmt.Errorf("ws: envelope schema violation: %w", err)
	}
	return nil
}
