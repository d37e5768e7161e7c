package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const noticeRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["error"],
  "additionalProperties": false,
  "properties": {
    "level": {
      "type": "string",
      "enum": ["debug", "info", "notice", "warning", "error", "critical", "alert", "emergency"]
    },
    "error": {
      "type": "object",
      "required": ["message"],
      "properties": {
        "type": {"type": "string"},
        "message": {"type": "string", "minLength": 1},
        "backtrace": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "file": {"type": "string"},
              "line": {"type": "integer", "minimum": 0},
              "function": {"type": "string"}
            }
          }
        }
      }
    },
    "params": {"type": "object"},
    "session": {"type": "object"}
  }
}`

var noticeSchema = gojsonschema.NewStringLoader(noticeRequestSchema)

// ValidationError describes every way a request failed to match its schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("server: request is invalid: %s", strings.Join(e.Problems, "; "))
}

type schemaValidator struct {
	schema *gojsonschema.Schema
}

// Validate returns a *ValidationError if data does not match the schema, or
// another error if data is not JSON at all.
func (sv *schemaValidator) Validate(data []byte) error {
	result, err := sv.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, re.String())
	}

	return verr
}

func newSchemaValidator() *schemaValidator {
	schema, err := gojsonschema.NewSchema(noticeSchema)
	if err != nil {
		panic(fmt.Sprintf("server: invalid notice request schema: %+v", err))
	}

	return &schemaValidator{schema: schema}
}
