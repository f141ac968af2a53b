package manifest

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

const undecodedKeysErrorTemplateConstant = "%w: unknown keys %v"

// TOMLCodec reads and writes manifests as [settings] and [repositories] tables.
type TOMLCodec struct{}

// Decode implements Codec.
func (TOMLCodec) Decode(content []byte) (Manifest, error) {
	var document manifestDocument
	metadata, decodeError := toml.Decode(string(content), &document)
	if decodeError != nil {
		return Manifest{}, malformedDocumentError(decodeError)
	}
	if undecodedKeys := metadata.Undecoded(); len(undecodedKeys) > 0 {
		return Manifest{}, fmt.Errorf(undecodedKeysErrorTemplateConstant, ErrManifestCorrupt, undecodedKeys)
	}
	return document.manifest()
}

// Encode implements Codec.
func (TOMLCodec) Encode(manifest Manifest) ([]byte, error) {
	var buffer bytes.Buffer
	if encodeError := toml.NewEncoder(&buffer).Encode(newManifestDocument(manifest)); encodeError != nil {
		return nil, encodeError
	}
	return buffer.Bytes(), nil
}
