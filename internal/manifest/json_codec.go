package manifest

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaResourceNameConstant           = "manifest.schema.json"
	jsonIndentConstant                   = "  "
	schemaLoadErrorTemplateConstant      = "load manifest schema: %w"
	schemaCompileErrorTemplateConstant   = "compile manifest schema: %w"
	schemaViolationErrorTemplateConstant = "%w: %v"
)

//go:embed schema.json
var manifestSchemaDocument []byte

var compiledManifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if addError := compiler.AddResource(schemaResourceNameConstant, bytes.NewReader(manifestSchemaDocument)); addError != nil {
		return nil, fmt.Errorf(schemaLoadErrorTemplateConstant, addError)
	}
	schema, compileError := compiler.Compile(schemaResourceNameConstant)
	if compileError != nil {
		return nil, fmt.Errorf(schemaCompileErrorTemplateConstant, compileError)
	}
	return schema, nil
})

// JSONCodec reads and writes manifests as JSON documents validated against an embedded schema.
// Output is deterministic so unchanged manifests produce identical bytes.
type JSONCodec struct{}

// Decode implements Codec.
func (JSONCodec) Decode(content []byte) (Manifest, error) {
	var rawDocument any
	if unmarshalError := json.Unmarshal(content, &rawDocument); unmarshalError != nil {
		return Manifest{}, malformedDocumentError(unmarshalError)
	}

	schema, schemaError := compiledManifestSchema()
	if schemaError != nil {
		return Manifest{}, schemaError
	}
	if validationError := schema.Validate(rawDocument); validationError != nil {
		return Manifest{}, fmt.Errorf(schemaViolationErrorTemplateConstant, ErrManifestCorrupt, validationError)
	}

	var document manifestDocument
	if unmarshalError := json.Unmarshal(content, &document); unmarshalError != nil {
		return Manifest{}, malformedDocumentError(unmarshalError)
	}
	return document.manifest()
}

// Encode implements Codec.
func (JSONCodec) Encode(manifest Manifest) ([]byte, error) {
	encoded, marshalError := json.Marshal(
		newManifestDocument(manifest),
		json.Deterministic(true),
		jsontext.WithIndent(jsonIndentConstant),
	)
	if marshalError != nil {
		return nil, marshalError
	}
	return append(encoded, '\n'), nil
}
