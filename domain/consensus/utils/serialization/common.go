package serialization

import (
	"encoding/binary"
	"io"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// errNoEncodingForType signifies that there's no encoding for the given type.
var errNoEncodingForType = errors.New("there's no encoding for this type")

// WriteElement writes the little endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	// Attempt to write the element based on the concrete type via fast
	// type assertions first.
	switch e := element.(type) {
	case uint8:
		return writeBytes(w, []byte{e})

	case bool:
		if e {
			return writeBytes(w, []byte{0x01})
		}
		return writeBytes(w, []byte{0x00})

	case uint16:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], e)
		return writeBytes(w, buf[:])

	case uint32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], e)
		return writeBytes(w, buf[:])

	case uint64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], e)
		return writeBytes(w, buf[:])

	case int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(e))
		return writeBytes(w, buf[:])

	case *externalapi.DomainHash:
		return writeBytes(w, e.ByteSlice())

	case externalapi.Address:
		return writeBytes(w, e[:])

	case externalapi.PublicKey:
		return writeBytes(w, e[:])

	case externalapi.Signature:
		return writeBytes(w, e[:])

	case []byte:
		err := WriteVarInt(w, uint64(len(e)))
		if err != nil {
			return err
		}
		return writeBytes(w, e)

	case string:
		err := WriteVarInt(w, uint64(len(e)))
		if err != nil {
			return err
		}
		return writeBytes(w, []byte(e))
	}

	return errors.Wrapf(errNoEncodingForType, "couldn't find a way to write type %T", element)
}

// WriteElements writes multiple items to w. It is equivalent to multiple
// calls to WriteElement.
func WriteElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		err := WriteElement(w, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], val)
	return writeBytes(w, buf[:n])
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	var buf [binary.MaxVarintLen64]byte
	return binary.PutUvarint(buf[:], val)
}

func writeBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return errors.WithStack(err)
}
