package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	for _, length := range []int{4, 6, 8} {
		code, err := generateCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)

		for _, char := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, char),
				"code %q contains character outside alphabet", code)
		}
	}
}

func TestGenerateCodeAlphabetExcludesAmbiguous(t *testing.T) {
	t.Parallel()

	for _, char := range "0O1IL" {
		assert.False(t, strings.ContainsRune(codeAlphabet, char),
			"alphabet must not contain ambiguous character %q", char)
	}
}
