// Package codec serializes graph data to and from the binary form stored on
// chain: Avro datum encoding per the DSNP schemas, raw DEFLATE compression
// of edge lists, and sealed-box encryption for private graphs.
package codec

import (
	"github.com/hamba/avro/v2"

	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// Avro schemas fixed by the DSNP spec. Data is exchanged as bare datums
// without any container framing.
var (
	publicKeySchema = avro.MustParse(`{
		"type": "record",
		"name": "PublicKey",
		"namespace": "org.dsnp",
		"fields": [
			{"name": "publicKey", "type": "bytes"}
		]
	}`)

	publicGraphChunkSchema = avro.MustParse(`{
		"type": "record",
		"name": "UserPublicGraphChunk",
		"namespace": "org.dsnp",
		"fields": [
			{"name": "compressedPublicGraph", "type": "bytes"}
		]
	}`)

	publicGraphSchema = avro.MustParse(`{
		"type": "array",
		"items": {
			"type": "record",
			"name": "GraphEdge",
			"namespace": "org.dsnp",
			"fields": [
				{"name": "userId", "type": "long"},
				{"name": "since", "type": "long"}
			]
		}
	}`)

	privateGraphChunkSchema = avro.MustParse(`{
		"type": "record",
		"name": "UserPrivateGraphChunk",
		"namespace": "org.dsnp",
		"fields": [
			{"name": "keyId", "type": "long"},
			{"name": "pridList", "type": {
				"type": "array",
				"items": {"type": "fixed", "name": "prid", "size": 8}
			}},
			{"name": "encryptedCompressedPrivateGraph", "type": "bytes"}
		]
	}`)
)

type wirePublicKey struct {
	PublicKey []byte `avro:"publicKey"`
}

type wirePublicGraphChunk struct {
	CompressedPublicGraph []byte `avro:"compressedPublicGraph"`
}

type wireGraphEdge struct {
	UserID int64 `avro:"userId"`
	Since  int64 `avro:"since"`
}

type wirePrivateGraphChunk struct {
	KeyID                           int64     `avro:"keyId"`
	PRIDList                        [][8]byte `avro:"pridList"`
	EncryptedCompressedPrivateGraph []byte    `avro:"encryptedCompressedPrivateGraph"`
}

func encodePublicKey(key dsnp.PublicKey) ([]byte, error) {
	out, err := avro.Marshal(publicKeySchema, wirePublicKey{PublicKey: key.Key})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "encoding public key")
	}
	return out, nil
}

func decodePublicKey(data []byte) (dsnp.PublicKey, error) {
	var wire wirePublicKey
	if err := avro.Unmarshal(publicKeySchema, data, &wire); err != nil {
		return dsnp.PublicKey{}, errors.Wrap(errors.ErrCodeCodecDecode, err, "decoding public key")
	}
	return dsnp.PublicKey{Key: wire.PublicKey}, nil
}

func encodePublicGraphChunk(chunk dsnp.PublicGraphChunk) ([]byte, error) {
	out, err := avro.Marshal(publicGraphChunkSchema, wirePublicGraphChunk{
		CompressedPublicGraph: chunk.CompressedPublicGraph,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "encoding public graph chunk")
	}
	return out, nil
}

func decodePublicGraphChunk(data []byte) (dsnp.PublicGraphChunk, error) {
	var wire wirePublicGraphChunk
	if err := avro.Unmarshal(publicGraphChunkSchema, data, &wire); err != nil {
		return dsnp.PublicGraphChunk{}, errors.Wrap(errors.ErrCodeCodecDecode, err,
			"decoding public graph chunk")
	}
	return dsnp.PublicGraphChunk{CompressedPublicGraph: wire.CompressedPublicGraph}, nil
}

func encodeInnerGraph(inner dsnp.InnerGraph) ([]byte, error) {
	wire := make([]wireGraphEdge, 0, len(inner))
	for _, e := range inner {
		wire = append(wire, wireGraphEdge{UserID: int64(e.UserID), Since: int64(e.Since)})
	}
	out, err := avro.Marshal(publicGraphSchema, wire)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "encoding edge list")
	}
	return out, nil
}

func decodeInnerGraph(data []byte) (dsnp.InnerGraph, error) {
	var wire []wireGraphEdge
	if err := avro.Unmarshal(publicGraphSchema, data, &wire); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecDecode, err, "decoding edge list")
	}
	inner := make(dsnp.InnerGraph, 0, len(wire))
	for _, e := range wire {
		inner = append(inner, dsnp.GraphEdge{UserID: dsnp.UserID(e.UserID), Since: uint64(e.Since)})
	}
	return inner, nil
}

func encodePrivateGraphChunk(chunk dsnp.PrivateGraphChunk) ([]byte, error) {
	prids := make([][8]byte, 0, len(chunk.PRIDs))
	for _, p := range chunk.PRIDs {
		prids = append(prids, [8]byte(p))
	}
	out, err := avro.Marshal(privateGraphChunkSchema, wirePrivateGraphChunk{
		KeyID:                           int64(chunk.KeyID),
		PRIDList:                        prids,
		EncryptedCompressedPrivateGraph: chunk.EncryptedCompressedPrivateGraph,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "encoding private graph chunk")
	}
	return out, nil
}

func decodePrivateGraphChunk(data []byte) (dsnp.PrivateGraphChunk, error) {
	var wire wirePrivateGraphChunk
	if err := avro.Unmarshal(privateGraphChunkSchema, data, &wire); err != nil {
		return dsnp.PrivateGraphChunk{}, errors.Wrap(errors.ErrCodeCodecDecode, err,
			"decoding private graph chunk")
	}
	prids := make([]dsnp.PRID, 0, len(wire.PRIDList))
	for _, p := range wire.PRIDList {
		prids = append(prids, dsnp.PRID(p))
	}
	return dsnp.PrivateGraphChunk{
		KeyID:                           uint64(wire.KeyID),
		PRIDs:                           prids,
		EncryptedCompressedPrivateGraph: wire.EncryptedCompressedPrivateGraph,
	}, nil
}
