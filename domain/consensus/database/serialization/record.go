// Package serialization encodes the records the consensus stores keep in
// the database. Records use the protobuf wire format, written and read
// field by field, with fields always emitted in ascending order so that
// an encoding is canonical and can be hashed.
package serialization

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type recordField struct {
	number protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func parseRecord(data []byte) ([]recordField, error) {
	var fields []recordField
	for len(data) > 0 {
		number, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "malformed record tag")
		}
		data = data[n:]

		field := recordField{number: number, typ: typ}
		switch typ {
		case protowire.VarintType:
			field.varint, n = protowire.ConsumeVarint(data)
		case protowire.Fixed64Type:
			field.varint, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			field.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(number, typ, data)
		}
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "malformed record field %d", number)
		}
		data = data[n:]
		fields = append(fields, field)
	}
	return fields, nil
}

func (f recordField) uint64Value() (uint64, error) {
	if f.typ != protowire.VarintType && f.typ != protowire.Fixed64Type {
		return 0, errors.Errorf("field %d: expected a number, got wire type %d", f.number, f.typ)
	}
	return f.varint, nil
}

func (f recordField) bytesValue() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, errors.Errorf("field %d: expected bytes, got wire type %d", f.number, f.typ)
	}
	return f.bytes, nil
}

func (f recordField) hashValue() (*externalapi.DomainHash, error) {
	hashBytes, err := f.bytesValue()
	if err != nil {
		return nil, err
	}
	return externalapi.NewDomainHashFromByteSlice(hashBytes)
}

func (f recordField) addressValue() (externalapi.Address, error) {
	addressBytes, err := f.bytesValue()
	if err != nil {
		return externalapi.Address{}, err
	}
	return externalapi.NewAddressFromSlice(addressBytes)
}

func appendVarintField(b []byte, number protowire.Number, value uint64) []byte {
	b = protowire.AppendTag(b, number, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

func appendFixed64Field(b []byte, number protowire.Number, value uint64) []byte {
	b = protowire.AppendTag(b, number, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, value)
}

func appendBytesField(b []byte, number protowire.Number, value []byte) []byte {
	b = protowire.AppendTag(b, number, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

func appendHashField(b []byte, number protowire.Number, hash *externalapi.DomainHash) []byte {
	if hash == nil {
		return b
	}
	return appendBytesField(b, number, hash.ByteSlice())
}
