package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirestoreKeyEncodingRoundTrip(t *testing.T) {
	keys := []string{
		"rules/btc-breakout",
		"rules/eth-drop",
		"history/1754049600000000000-btc-breakout",
	}

	for _, key := range keys {
		encoded := encodeKey(key)

		// A slash in a document ID would turn it into a path segment,
		// which Firestore rejects.
		require.NotContains(t, encoded, "/")

		decoded, err := decodeKey(encoded)
		require.NoError(t, err)
		require.Equal(t, key, decoded)
	}
}

func TestFirestoreKeyEncodingPreservesPrefix(t *testing.T) {
	encoded := encodeKey("rules/btc-breakout")
	require.True(t, strings.HasPrefix(encoded, encodeKey("rules/")))
}
