// Package llm provides options pattern for LLM generation parameters.
package llm

import "github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"

// Format is the response shape requested from the model.
type Format string

const (
	// FormatText leaves the response unconstrained.
	FormatText Format = ""
	// FormatJSONObject asks for any syntactically valid JSON object.
	FormatJSONObject Format = "json_object"
	// FormatJSONSchema asks for output conforming to GenerateOptions.Schema.
	FormatJSONSchema Format = "json_schema"
)

// Schema is a named JSON schema for the json_schema response format.
type Schema struct {
	Name       string
	Definition tools.JSONSchema
	Strict     bool
}

// GenerateOptions holds parameters for a single chat-completion call.
type GenerateOptions struct {
	// Model overrides the provider's configured model when non-empty.
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Format specifies the response format.
	Format Format

	// Schema is used only with FormatJSONSchema.
	Schema *Schema

	// Tools declares callable functions. Empty means no function calling.
	Tools []tools.ToolDefinition

	// ToolChoice is "auto" when empty and Tools are declared.
	ToolChoice string
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithFormat sets the response format. Use WithJSONSchema for schema output.
func WithFormat(format Format) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = format
		if format != FormatJSONSchema {
			o.Schema = nil
		}
	}
}

// WithJSONSchema switches the response format to json_schema with the given schema.
func WithJSONSchema(s Schema) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = FormatJSONSchema
		o.Schema = &s
	}
}

// WithTools declares callable functions with automatic tool choice.
func WithTools(defs []tools.ToolDefinition) GenerateOption {
	return func(o *GenerateOptions) {
		o.Tools = defs
		o.ToolChoice = "auto"
	}
}

// ApplyOptions folds opts over base and returns the result.
func ApplyOptions(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	return base
}
