package binaryserialization

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Heights are serialized big-endian so that database cursors iterate
// them in ascending order
var byteOrder = binary.BigEndian

// SerializeHeight serializes a block height
func SerializeHeight(height uint64) []byte {
	var heightBytes [8]byte
	byteOrder.PutUint64(heightBytes[:], height)
	return heightBytes[:]
}

// DeserializeHeight deserializes a block height
func DeserializeHeight(heightBytes []byte) (uint64, error) {
	if len(heightBytes) != 8 {
		return 0, errors.Errorf("invalid height length %d", len(heightBytes))
	}
	return byteOrder.Uint64(heightBytes), nil
}
