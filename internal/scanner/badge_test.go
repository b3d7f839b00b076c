package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgeRoundtrip(t *testing.T) {
	code := EncodeBadge(42)
	require.Equal(t, "Alptraum42Technologies", code)

	id, err := DecodeBadge(code)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	// Surrounding whitespace from scanners is tolerated.
	id, err = DecodeBadge("  Alptraum7Technologies\n")
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
}

func TestDecodeBadgeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"42",
		"AlptraumTechnologies",
		"Alptraum42",
		"42Technologies",
		"AlptraumXYZTechnologies",
		"Alptraum-1Technologies",
		"Alptraum99999999999999999999Technologies",
	}
	for _, code := range cases {
		_, err := DecodeBadge(code)
		require.ErrorIs(t, err, ErrBadBadge, "code %q", code)
	}
}
