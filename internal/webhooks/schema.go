package webhooks

import (
	"fmt"
	"strings"

	"sjfulfillment/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// eventPayloadSchema constrains payloads accepted from the public test
// endpoint. Internal callers construct payloads directly and skip this.
const eventPayloadSchema = `{
	"type": "object",
	"properties": {
		"event": {
			"type": "string",
			"pattern": "^[a-z0-9]+(?:[._-][a-z0-9]+)*$",
			"maxLength": 64
		},
		"data": {
			"type": "object"
		}
	},
	"required": ["event"],
	"additionalProperties": false
}`

var payloadSchema = gojsonschema.NewStringLoader(eventPayloadSchema)

// ValidateEventPayload checks an externally supplied event name and payload
// against the event schema, returning a validation error listing every
// violation.
func ValidateEventPayload(event string, data map[string]interface{}) error {
	doc := map[string]interface{}{"event": event}
	if data != nil {
		doc["data"] = data
	}

	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("payload validation failed: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return errors.NewValidationError(strings.Join(msgs, "; "))
}
