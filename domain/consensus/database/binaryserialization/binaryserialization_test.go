package binaryserialization

import (
	"bytes"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

func TestHeightOrdering(t *testing.T) {
	heights := []uint64{0, 1, 255, 256, 1 << 32, 1<<64 - 1}
	for i := 1; i < len(heights); i++ {
		if bytes.Compare(SerializeHeight(heights[i-1]), SerializeHeight(heights[i])) >= 0 {
			t.Fatalf("TestHeightOrdering: %d does not sort before %d", heights[i-1], heights[i])
		}
	}
	for _, height := range heights {
		deserialized, err := DeserializeHeight(SerializeHeight(height))
		if err != nil {
			t.Fatalf("DeserializeHeight: %+v", err)
		}
		if deserialized != height {
			t.Fatalf("TestHeightOrdering: expected %d, got %d", height, deserialized)
		}
	}
	_, err := DeserializeHeight([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("TestHeightOrdering: expected an error for a short height")
	}
}

func TestHash(t *testing.T) {
	hash := externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{1, 2, 3})
	deserialized, err := DeserializeHash(SerializeHash(hash))
	if err != nil {
		t.Fatalf("DeserializeHash: %+v", err)
	}
	if !deserialized.Equal(hash) {
		t.Fatalf("TestHash: expected %s, got %s", hash, deserialized)
	}
}
