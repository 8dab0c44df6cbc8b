package serialization

import (
	"math"
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	chainDataTotalWorkField          protowire.Number = 1
	chainDataHeightField             protowire.Number = 2
	chainDataOnMainChainField        protowire.Number = 3
	chainDataMainChainSuccessorField protowire.Number = 4
	chainDataSuperBlockCountsField   protowire.Number = 5
)

// SerializeChainData encodes chain data as a database record
func SerializeChainData(chainData *externalapi.ChainData) []byte {
	var b []byte
	b = appendBytesField(b, chainDataTotalWorkField, chainData.TotalWork.Bytes())
	b = appendVarintField(b, chainDataHeightField, chainData.Height)
	b = appendVarintField(b, chainDataOnMainChainField, protowire.EncodeBool(chainData.OnMainChain))
	b = appendHashField(b, chainDataMainChainSuccessorField, chainData.MainChainSuccessor)

	var packed []byte
	for _, count := range chainData.SuperBlockCounts {
		packed = protowire.AppendVarint(packed, uint64(count))
	}
	b = appendBytesField(b, chainDataSuperBlockCountsField, packed)
	return b
}

// DeserializeChainData decodes a chain data record
func DeserializeChainData(data []byte) (*externalapi.ChainData, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	chainData := &externalapi.ChainData{
		TotalWork:        big.NewInt(0),
		SuperBlockCounts: []uint32{},
	}
	for _, field := range fields {
		switch field.number {
		case chainDataTotalWorkField:
			var totalWork []byte
			totalWork, err = field.bytesValue()
			chainData.TotalWork = new(big.Int).SetBytes(totalWork)
		case chainDataHeightField:
			chainData.Height, err = field.uint64Value()
		case chainDataOnMainChainField:
			var onMainChain uint64
			onMainChain, err = field.uint64Value()
			chainData.OnMainChain = protowire.DecodeBool(onMainChain)
		case chainDataMainChainSuccessorField:
			chainData.MainChainSuccessor, err = field.hashValue()
		case chainDataSuperBlockCountsField:
			chainData.SuperBlockCounts, err = unpackCounts(field)
		}
		if err != nil {
			return nil, err
		}
	}
	return chainData, nil
}

func unpackCounts(field recordField) ([]uint32, error) {
	packed, err := field.bytesValue()
	if err != nil {
		return nil, err
	}
	counts := []uint32{}
	for len(packed) > 0 {
		count, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "malformed super block counts")
		}
		if count > math.MaxUint32 {
			return nil, errors.Errorf("super block count %d overflows uint32", count)
		}
		counts = append(counts, uint32(count))
		packed = packed[n:]
	}
	return counts, nil
}
