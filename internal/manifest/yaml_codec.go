package manifest

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

const yamlIndentConstant = 2

// YAMLCodec reads and writes manifests with settings and repositories sections.
type YAMLCodec struct{}

// Decode implements Codec.
func (YAMLCodec) Decode(content []byte) (Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var document manifestDocument
	if decodeError := decoder.Decode(&document); decodeError != nil && !errors.Is(decodeError, io.EOF) {
		return Manifest{}, malformedDocumentError(decodeError)
	}
	return document.manifest()
}

// Encode implements Codec.
func (YAMLCodec) Encode(manifest Manifest) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(newManifestDocument(manifest)); encodeError != nil {
		return nil, encodeError
	}
	if closeError := encoder.Close(); closeError != nil {
		return nil, closeError
	}
	return buffer.Bytes(), nil
}
