package utils_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitsplit/internal/utils"
)

func TestULIDGeneratorProducesOrderedIdentifiers(testInstance *testing.T) {
	generator := utils.NewULIDGenerator()

	previous := ""
	for range 16 {
		identifier, generationError := generator.NewIdentifier()
		require.NoError(testInstance, generationError)
		_, parseError := ulid.ParseStrict(identifier)
		require.NoError(testInstance, parseError)
		require.Greater(testInstance, identifier, previous)
		previous = identifier
	}
}
