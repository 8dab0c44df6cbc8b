package consensushashing

import (
	"bytes"
	"io"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/nipopow/nipowd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// HeaderSize is the size of a serialized block header
const HeaderSize = 2 + 4*externalapi.DomainHashSize + 4 + 8 + 8 + 8

// NonceOffset is the offset of the nonce inside a serialized block header.
// The nonce is always the last field of the header.
const NonceOffset = HeaderSize - 8

// BlockHash returns the given block's hash
func BlockHash(block *externalapi.DomainBlock) *externalapi.DomainHash {
	return HeaderHash(block.Header)
}

// HeaderHash returns the given header's hash
func HeaderHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	// Encode the header and hash everything prior to the number of
	// transactions.
	writer := hashes.NewBlockHashWriter()
	err := SerializeHeader(writer, header)
	if err != nil {
		// It seems like this could only happen if the writer returned an error.
		// and this writer should never return an error (no allocations or possible failures)
		// the only non-writer error path here is unknown types in `WriteElement`
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}

	return writer.Finalize()
}

// HeaderBytes returns the serialized header
func HeaderBytes(header *externalapi.DomainBlockHeader) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	err := SerializeHeader(buf, header)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. bytes.Buffer never returns an error"))
	}
	return buf.Bytes()
}

// HashHeaderBytes hashes an already serialized header
func HashHeaderBytes(headerBytes []byte) *externalapi.DomainHash {
	writer := hashes.NewBlockHashWriter()
	writer.InfallibleWrite(headerBytes)
	return writer.Finalize()
}

// SerializeHeader writes the header to w. The nonce is written last
func SerializeHeader(w io.Writer, header *externalapi.DomainBlockHeader) error {
	return serialization.WriteElements(w,
		header.Version,
		hashOrZero(header.PrevHash),
		hashOrZero(header.InterlinkHash),
		hashOrZero(header.BodyHash),
		hashOrZero(header.AccountsHash),
		header.Bits,
		header.Height,
		header.TimeInMilliseconds,
		header.Nonce)
}

// BodyHash returns the hash of the serialized block body
func BodyHash(body *externalapi.DomainBlockBody) *externalapi.DomainHash {
	writer := hashes.NewBodyHashWriter()
	err := SerializeBody(writer, body)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}
	return writer.Finalize()
}

// SerializeBody writes the block body to w
func SerializeBody(w io.Writer, body *externalapi.DomainBlockBody) error {
	err := serialization.WriteElements(w, body.MinerAddress, body.ExtraData)
	if err != nil {
		return err
	}
	err = serialization.WriteVarInt(w, uint64(len(body.Transactions)))
	if err != nil {
		return err
	}
	for _, transaction := range body.Transactions {
		err = serializeTransaction(w, transaction, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// InterlinkHash returns the hash of the serialized interlink
func InterlinkHash(interlink externalapi.BlockInterlink) *externalapi.DomainHash {
	writer := hashes.NewInterlinkHashWriter()
	err := SerializeInterlink(writer, interlink)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}
	return writer.Finalize()
}

// SerializeInterlink writes the interlink to w
func SerializeInterlink(w io.Writer, interlink externalapi.BlockInterlink) error {
	err := serialization.WriteVarInt(w, uint64(len(interlink)))
	if err != nil {
		return err
	}
	for _, hash := range interlink {
		err = serialization.WriteElement(w, hashOrZero(hash))
		if err != nil {
			return err
		}
	}
	return nil
}

// BlockSize returns the serialized size of the whole block
func BlockSize(block *externalapi.DomainBlock) int {
	counter := &byteCounter{}
	_ = SerializeHeader(counter, block.Header)
	_ = SerializeInterlink(counter, block.Interlink)
	_ = SerializeBody(counter, block.Body)
	return counter.count
}

type byteCounter struct {
	count int
}

func (c *byteCounter) Write(p []byte) (int, error) {
	c.count += len(p)
	return len(p), nil
}

func hashOrZero(hash *externalapi.DomainHash) *externalapi.DomainHash {
	if hash == nil {
		return externalapi.NewZeroHash()
	}
	return hash
}
