package kv

import (
	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
	"github.com/pkg/errors"
)

func compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}
	return bb, nil
}

// encodeValue marshals v with kelindar/binary and compresses the result.
func encodeValue[T any](v T) ([]byte, error) {
	encoded, err := binary.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	return compress(encoded)
}

func decodeValue[T any](bb []byte) (T, error) {
	var v T
	raw, err := decompress(bb)
	if err != nil {
		return v, errors.Wrap(err, "decompress record")
	}
	if err := binary.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "unmarshal record")
	}
	return v, nil
}
