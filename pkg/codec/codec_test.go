package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
)

func TestPublicKeyRoundTrip(t *testing.T) {
	key := dsnp.PublicKey{Key: []byte{27, 23, 23, 109, 198, 111, 70, 2, 89, 2, 1, 0, 23}}

	data, err := WritePublicKey(key)
	require.NoError(t, err)

	got, err := ReadPublicKey(data)
	require.NoError(t, err)
	assert.Equal(t, key.Key, got.Key)
	assert.Nil(t, got.KeyID)
}

func TestPublicGraphRoundTrip(t *testing.T) {
	inner := dsnp.InnerGraph{
		{UserID: 7, Since: 12638718},
		{UserID: 167282, Since: 28638718},
	}

	data, err := WritePublicGraph(inner)
	require.NoError(t, err)

	got, err := ReadPublicGraph(data)
	require.NoError(t, err)
	assert.Equal(t, inner, got)
}

func TestPublicGraphCorruptedInput(t *testing.T) {
	inner := dsnp.InnerGraph{{UserID: 7, Since: 12638718}}

	data, err := WritePublicGraph(inner)
	require.NoError(t, err)

	_, err = ReadPublicGraph(data[:len(data)-1])
	assert.Error(t, err)
}

func TestPrivateGraphRoundTrip(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	prid, err := dsnp.NewPRID([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	chunk := dsnp.DecryptedPrivateGraph{
		KeyID: 26783,
		PRIDs: []dsnp.PRID{prid},
		InnerGraph: dsnp.InnerGraph{
			{UserID: 7, Since: 12638718},
			{UserID: 167282, Since: 28638718},
		},
	}

	data, err := WritePrivateGraph(chunk, kp.Public)
	require.NoError(t, err)

	got, err := ReadPrivateGraph(data, kp)
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestPrivateGraphChunkKeyIDInClear(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	chunk := dsnp.DecryptedPrivateGraph{
		KeyID:      42,
		InnerGraph: dsnp.InnerGraph{{UserID: 1, Since: 1000}},
	}

	data, err := WritePrivateGraph(chunk, kp.Public)
	require.NoError(t, err)

	parsed, err := ReadPrivateGraphChunk(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), parsed.KeyID)
}

func TestPrivateGraphWrongKey(t *testing.T) {
	owner, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	chunk := dsnp.DecryptedPrivateGraph{
		KeyID:      1,
		InnerGraph: dsnp.InnerGraph{{UserID: 9, Since: 2000}},
	}

	data, err := WritePrivateGraph(chunk, owner.Public)
	require.NoError(t, err)

	_, err = ReadPrivateGraph(data, other)
	assert.Error(t, err)
}

func TestWritePrivateGraphRejectsBadKey(t *testing.T) {
	chunk := dsnp.DecryptedPrivateGraph{KeyID: 1}
	_, err := WritePrivateGraph(chunk, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEmptyGraphRoundTrip(t *testing.T) {
	data, err := WritePublicGraph(dsnp.InnerGraph{})
	require.NoError(t, err)

	got, err := ReadPublicGraph(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}
