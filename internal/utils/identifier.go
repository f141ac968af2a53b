package utils

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const generateIdentifierErrorTemplateConstant = "generate identifier: %w"

// ULIDGenerator produces monotonically increasing ULID strings for run identifiers and temporary names.
type ULIDGenerator struct {
	mutex   sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator constructs a generator seeded from crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewIdentifier returns the next identifier.
func (generator *ULIDGenerator) NewIdentifier() (string, error) {
	generator.mutex.Lock()
	defer generator.mutex.Unlock()

	identifier, generationError := ulid.New(ulid.Timestamp(time.Now().UTC()), generator.entropy)
	if generationError != nil {
		return "", fmt.Errorf(generateIdentifierErrorTemplateConstant, generationError)
	}
	return identifier.String(), nil
}
