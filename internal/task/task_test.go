package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]Kind{
		"comment":           Comment,
		"Comment-Selection": Comment,
		" function ":        GenerateFunction,
		"generate-function": GenerateFunction,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("refactor")
	assert.Error(t, err)
}

func TestAllIsStable(t *testing.T) {
	assert.Equal(t, []Kind{Comment, GenerateFunction}, All())
}
