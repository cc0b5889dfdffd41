package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSlug(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"simple name", "Acme", "acme"},
		{"spaces collapse to hyphens", "Acme Travel Agency", "acme-travel-agency"},
		{"diacritics stripped", "Agência São João", "agencia-sao-joao"},
		{"punctuation collapsed", "Acme, Inc. (EU)", "acme-inc-eu"},
		{"leading and trailing junk trimmed", "  --Acme--  ", "acme"},
		{"digits preserved", "Studio 54", "studio-54"},
		{"consecutive separators", "a  -  b", "a-b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveSlug(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("rejects input with no usable characters", func(t *testing.T) {
		_, err := DeriveSlug("!!! ***")
		assert.Error(t, err)
	})

	t.Run("truncates overlong input", func(t *testing.T) {
		long := ""
		for i := 0; i < 20; i++ {
			long += "abcdefgh "
		}
		got, err := DeriveSlug(long)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), maxSlugLength)
		assert.NoError(t, ValidateSlug(got))
	})
}

func TestValidateSlug(t *testing.T) {
	assert.NoError(t, ValidateSlug("acme"))
	assert.NoError(t, ValidateSlug("acme-travel-2"))
	assert.Error(t, ValidateSlug(""))
	assert.Error(t, ValidateSlug("Acme"))
	assert.Error(t, ValidateSlug("acme_travel"))
	assert.Error(t, ValidateSlug("-acme-"))
}
