package codec

import (
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
)

// WritePublicKey serializes a published key to its on-chain form.
func WritePublicKey(key dsnp.PublicKey) ([]byte, error) {
	return encodePublicKey(key)
}

// ReadPublicKey parses a published key from its on-chain form.
func ReadPublicKey(data []byte) (dsnp.PublicKey, error) {
	return decodePublicKey(data)
}

// WritePublicGraph serializes an edge list to a public graph page blob:
// the Avro-encoded edges, compressed, wrapped in a chunk record.
func WritePublicGraph(inner dsnp.InnerGraph) ([]byte, error) {
	serialized, err := encodeInnerGraph(inner)
	if err != nil {
		return nil, err
	}
	compressed, err := compress(serialized)
	if err != nil {
		return nil, err
	}
	return encodePublicGraphChunk(dsnp.PublicGraphChunk{CompressedPublicGraph: compressed})
}

// ReadPublicGraph parses a public graph page blob back to its edge list.
func ReadPublicGraph(data []byte) (dsnp.InnerGraph, error) {
	chunk, err := decodePublicGraphChunk(data)
	if err != nil {
		return nil, err
	}
	decompressed, err := decompress(chunk.CompressedPublicGraph)
	if err != nil {
		return nil, err
	}
	return decodeInnerGraph(decompressed)
}

// WritePrivateGraph serializes a decrypted private chunk to a private graph
// page blob. The edge list is Avro-encoded, compressed and sealed for the
// holder of encryptionKey's secret counterpart; the key id and PRID list
// stay in the clear.
func WritePrivateGraph(chunk dsnp.DecryptedPrivateGraph, encryptionKey []byte) ([]byte, error) {
	serialized, err := encodeInnerGraph(chunk.InnerGraph)
	if err != nil {
		return nil, err
	}
	compressed, err := compress(serialized)
	if err != nil {
		return nil, err
	}
	sealed, err := sealBox(compressed, encryptionKey)
	if err != nil {
		return nil, err
	}
	return encodePrivateGraphChunk(dsnp.PrivateGraphChunk{
		KeyID:                           chunk.KeyID,
		PRIDs:                           chunk.PRIDs,
		EncryptedCompressedPrivateGraph: sealed,
	})
}

// ReadPrivateGraphChunk parses a private graph page blob without opening
// the encrypted payload. Callers use the clear key id to pick a decryption
// key before calling DecryptPrivateGraph.
func ReadPrivateGraphChunk(data []byte) (dsnp.PrivateGraphChunk, error) {
	return decodePrivateGraphChunk(data)
}

// DecryptPrivateGraph opens a parsed private chunk with the given key pair
// and decodes the edge list.
func DecryptPrivateGraph(chunk dsnp.PrivateGraphChunk, kp crypto.GraphKeyPair) (dsnp.DecryptedPrivateGraph, error) {
	compressed, err := openSealBox(chunk.EncryptedCompressedPrivateGraph, kp)
	if err != nil {
		return dsnp.DecryptedPrivateGraph{}, err
	}
	decompressed, err := decompress(compressed)
	if err != nil {
		return dsnp.DecryptedPrivateGraph{}, err
	}
	inner, err := decodeInnerGraph(decompressed)
	if err != nil {
		return dsnp.DecryptedPrivateGraph{}, err
	}
	return dsnp.DecryptedPrivateGraph{
		KeyID:      chunk.KeyID,
		PRIDs:      chunk.PRIDs,
		InnerGraph: inner,
	}, nil
}

// ReadPrivateGraph parses and opens a private graph page blob in one step.
func ReadPrivateGraph(data []byte, kp crypto.GraphKeyPair) (dsnp.DecryptedPrivateGraph, error) {
	chunk, err := decodePrivateGraphChunk(data)
	if err != nil {
		return dsnp.DecryptedPrivateGraph{}, err
	}
	return DecryptPrivateGraph(chunk, kp)
}
