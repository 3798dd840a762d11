package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Schema struct {
	schema *gojsonschema.Schema
}

//go:embed config.json
var configSchema json.RawMessage
var configSchemaLoader = gojsonschema.NewBytesLoader(configSchema)

// NewConfigSchema compiles the schema of the configuration file.
func NewConfigSchema() (*Schema, error) {
	schema, err := gojsonschema.NewSchema(configSchemaLoader)
	if err != nil {
		return nil, err
	}

	return &Schema{schema: schema}, nil
}

// Validate validates data against the schema. All violations are
// reported in a single error wrapping ErrInvalidConfig.
func (s *Schema) Validate(data map[string]any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(violations, "; "))
}
