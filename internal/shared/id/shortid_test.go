package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasPrefixAndAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		v := New(PrefixRetrySchedule)
		require.True(t, strings.HasPrefix(v, "rs_"))
		_, short, err := ParsePrefixedID(v)
		require.NoError(t, err)
		assert.Len(t, short, DefaultLength)
		for _, c := range short {
			assert.True(t, strings.ContainsRune(alphabet, c))
		}
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix("dr_abc", PrefixDunningRun))
	assert.Error(t, ValidatePrefix("rs_abc", PrefixDunningRun))
	assert.Error(t, ValidatePrefix("nounderscore", PrefixDunningRun))
	assert.Error(t, ValidatePrefix("dr_", PrefixDunningRun))
}
