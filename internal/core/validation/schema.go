package validation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/metamap/internal/core/domain"
)

//go:embed schema/mapdata.schema.json
var defaultSchemaDocument []byte

// Schema is a loaded map document schema together with the point sub-schema
// used to validate standalone points.
type Schema struct {
	document *openapi3.Schema
	point    *openapi3.Schema
}

// DefaultSchema parses the schema compiled into the binary.
func DefaultSchema() (*Schema, error) {
	return ParseSchema(defaultSchemaDocument)
}

// DefaultSchemaDocument returns a copy of the built-in schema document.
func DefaultSchemaDocument() []byte {
	return append([]byte(nil), defaultSchemaDocument...)
}

// LoadSchema reads a schema document from path. An empty path selects the
// built-in schema. Any failure wraps domain.ErrConfiguration.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w: %w", path, domain.ErrConfiguration, err)
	}
	return ParseSchema(data)
}

// ParseSchema parses and checks a JSON schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var doc openapi3.Schema
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w: %w", domain.ErrConfiguration, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("check schema: %w: %w", domain.ErrConfiguration, err)
	}

	dataRef := doc.Properties["data"]
	if dataRef == nil || dataRef.Value == nil || dataRef.Value.Items == nil || dataRef.Value.Items.Value == nil {
		return nil, fmt.Errorf("schema has no data item definition: %w", domain.ErrConfiguration)
	}

	return &Schema{document: &doc, point: dataRef.Value.Items.Value}, nil
}
