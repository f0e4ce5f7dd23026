package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const feedbackSchemaName = "feedback_list"

const feedbackSchema = `{
  "type": "object",
  "properties": {
    "language": {
      "type": "string",
      "description": "The programming language of the code, as a lowercase syntax highlighter identifier."
    },
    "feedback_points": {
      "type": "array",
      "description": "A collection of feedback points.",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string", "description": "The title of the feedback point."},
          "summary": {"type": "string", "description": "A one line restatement for a beginner that does not reuse words from the title."},
          "description": {"type": "string", "description": "A detailed explanation of the feedback given."},
          "questions": {"type": "string", "description": "Acting as a coach, use questioning to help the trainee understand the feedback."},
          "line_numbers": {"type": "string", "description": "The line numbers in the code where the feedback applies. Denoted as a comma separated list, with individual numbers or ranges of numbers (e.g. 3,4,10-15)"},
          "code_example": {"type": "string", "description": "A code example providing a solution or illustration related to the feedback."},
          "type": {"type": "string", "enum": ["Performance", "Readability", "Advanced", "Bug"]},
          "severity": {"type": "integer", "enum": [1, 2, 3, 4, 5], "description": "5 is critical, 1 is informational."}
        },
        "required": ["title", "summary", "description", "questions", "line_numbers", "code_example", "type", "severity"],
        "additionalProperties": false
      }
    }
  },
  "required": ["language", "feedback_points"],
  "additionalProperties": false
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// FeedbackSchema returns the raw JSON schema sent to the model.
func FeedbackSchema() json.RawMessage {
	return json.RawMessage(feedbackSchema)
}

func validator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(feedbackSchemaName+".json", strings.NewReader(feedbackSchema)); err != nil {
			compileErr = err
			return
		}
		compiledSchema, compileErr = compiler.Compile(feedbackSchemaName + ".json")
	})
	return compiledSchema, compileErr
}

// ParseFeedbackPayload validates content against the feedback schema and decodes it.
func ParseFeedbackPayload(content string) (FeedbackPayload, error) {
	schema, err := validator()
	if err != nil {
		return FeedbackPayload{}, fmt.Errorf("compile feedback schema: %w", err)
	}

	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber()
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return FeedbackPayload{}, fmt.Errorf("parse feedback json: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return FeedbackPayload{}, fmt.Errorf("feedback does not match schema: %w", err)
	}

	var payload FeedbackPayload
	strict := json.NewDecoder(bytes.NewReader([]byte(content)))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&payload); err != nil {
		return FeedbackPayload{}, fmt.Errorf("decode feedback json: %w", err)
	}

	return payload, nil
}
