package serialization

import (
	"math"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	blockHeaderField    protowire.Number = 1
	blockInterlinkField protowire.Number = 2
	blockBodyField      protowire.Number = 3
)

const (
	headerVersionField       protowire.Number = 1
	headerPrevHashField      protowire.Number = 2
	headerInterlinkHashField protowire.Number = 3
	headerBodyHashField      protowire.Number = 4
	headerAccountsHashField  protowire.Number = 5
	headerBitsField          protowire.Number = 6
	headerHeightField        protowire.Number = 7
	headerTimeField          protowire.Number = 8
	headerNonceField         protowire.Number = 9
)

const (
	bodyMinerAddressField protowire.Number = 1
	bodyExtraDataField    protowire.Number = 2
	bodyTransactionField  protowire.Number = 3
)

const (
	txSenderField              protowire.Number = 1
	txSenderPublicKeyField     protowire.Number = 2
	txRecipientField           protowire.Number = 3
	txValueField               protowire.Number = 4
	txFeeField                 protowire.Number = 5
	txNonceField               protowire.Number = 6
	txValidityStartHeightField protowire.Number = 7
	txSignatureField           protowire.Number = 8
)

// SerializeBlock encodes a block as a database record
func SerializeBlock(block *externalapi.DomainBlock) []byte {
	var b []byte
	b = appendBytesField(b, blockHeaderField, SerializeBlockHeader(block.Header))
	for _, hash := range block.Interlink {
		b = appendHashField(b, blockInterlinkField, hash)
	}
	b = appendBytesField(b, blockBodyField, serializeBlockBody(block.Body))
	return b
}

// DeserializeBlock decodes a block record
func DeserializeBlock(data []byte) (*externalapi.DomainBlock, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	block := &externalapi.DomainBlock{Interlink: externalapi.BlockInterlink{}}
	for _, field := range fields {
		switch field.number {
		case blockHeaderField:
			headerBytes, err := field.bytesValue()
			if err != nil {
				return nil, err
			}
			block.Header, err = DeserializeBlockHeader(headerBytes)
			if err != nil {
				return nil, err
			}
		case blockInterlinkField:
			hash, err := field.hashValue()
			if err != nil {
				return nil, err
			}
			block.Interlink = append(block.Interlink, hash)
		case blockBodyField:
			bodyBytes, err := field.bytesValue()
			if err != nil {
				return nil, err
			}
			block.Body, err = deserializeBlockBody(bodyBytes)
			if err != nil {
				return nil, err
			}
		}
	}
	if block.Header == nil || block.Body == nil {
		return nil, errors.New("block record is missing its header or body")
	}
	return block, nil
}

// SerializeBlockHeader encodes a block header as a database record
func SerializeBlockHeader(header *externalapi.DomainBlockHeader) []byte {
	var b []byte
	b = appendVarintField(b, headerVersionField, uint64(header.Version))
	b = appendHashField(b, headerPrevHashField, header.PrevHash)
	b = appendHashField(b, headerInterlinkHashField, header.InterlinkHash)
	b = appendHashField(b, headerBodyHashField, header.BodyHash)
	b = appendHashField(b, headerAccountsHashField, header.AccountsHash)
	b = appendVarintField(b, headerBitsField, uint64(header.Bits))
	b = appendVarintField(b, headerHeightField, header.Height)
	b = appendVarintField(b, headerTimeField, protowire.EncodeZigZag(header.TimeInMilliseconds))
	b = appendFixed64Field(b, headerNonceField, header.Nonce)
	return b
}

// DeserializeBlockHeader decodes a block header record
func DeserializeBlockHeader(data []byte) (*externalapi.DomainBlockHeader, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	header := &externalapi.DomainBlockHeader{}
	for _, field := range fields {
		var value uint64
		switch field.number {
		case headerVersionField:
			value, err = field.uint64Value()
			if value > math.MaxUint16 {
				return nil, errors.Errorf("Invalid header version - bigger then uint16")
			}
			header.Version = uint16(value)
		case headerPrevHashField:
			header.PrevHash, err = field.hashValue()
		case headerInterlinkHashField:
			header.InterlinkHash, err = field.hashValue()
		case headerBodyHashField:
			header.BodyHash, err = field.hashValue()
		case headerAccountsHashField:
			header.AccountsHash, err = field.hashValue()
		case headerBitsField:
			value, err = field.uint64Value()
			if value > math.MaxUint32 {
				return nil, errors.Errorf("Invalid header bits - bigger then uint32")
			}
			header.Bits = uint32(value)
		case headerHeightField:
			header.Height, err = field.uint64Value()
		case headerTimeField:
			value, err = field.uint64Value()
			header.TimeInMilliseconds = protowire.DecodeZigZag(value)
		case headerNonceField:
			header.Nonce, err = field.uint64Value()
		}
		if err != nil {
			return nil, err
		}
	}
	return header, nil
}

func serializeBlockBody(body *externalapi.DomainBlockBody) []byte {
	var b []byte
	b = appendBytesField(b, bodyMinerAddressField, body.MinerAddress[:])
	b = appendBytesField(b, bodyExtraDataField, body.ExtraData)
	for _, tx := range body.Transactions {
		b = appendBytesField(b, bodyTransactionField, SerializeTransaction(tx))
	}
	return b
}

func deserializeBlockBody(data []byte) (*externalapi.DomainBlockBody, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	body := &externalapi.DomainBlockBody{Transactions: []*externalapi.DomainTransaction{}}
	for _, field := range fields {
		switch field.number {
		case bodyMinerAddressField:
			body.MinerAddress, err = field.addressValue()
		case bodyExtraDataField:
			var extraData []byte
			extraData, err = field.bytesValue()
			if len(extraData) > 0 {
				body.ExtraData = append([]byte(nil), extraData...)
			}
		case bodyTransactionField:
			var txBytes []byte
			txBytes, err = field.bytesValue()
			if err != nil {
				return nil, err
			}
			var tx *externalapi.DomainTransaction
			tx, err = DeserializeTransaction(txBytes)
			body.Transactions = append(body.Transactions, tx)
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// SerializeTransaction encodes a transaction as a record
func SerializeTransaction(tx *externalapi.DomainTransaction) []byte {
	var b []byte
	b = appendBytesField(b, txSenderField, tx.Sender[:])
	b = appendBytesField(b, txSenderPublicKeyField, tx.SenderPublicKey[:])
	b = appendBytesField(b, txRecipientField, tx.Recipient[:])
	b = appendVarintField(b, txValueField, tx.Value)
	b = appendVarintField(b, txFeeField, tx.Fee)
	b = appendVarintField(b, txNonceField, tx.Nonce)
	b = appendVarintField(b, txValidityStartHeightField, tx.ValidityStartHeight)
	b = appendBytesField(b, txSignatureField, tx.Signature[:])
	return b
}

// DeserializeTransaction decodes a transaction record
func DeserializeTransaction(data []byte) (*externalapi.DomainTransaction, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	tx := &externalapi.DomainTransaction{}
	for _, field := range fields {
		var fixedBytes []byte
		switch field.number {
		case txSenderField:
			tx.Sender, err = field.addressValue()
		case txSenderPublicKeyField:
			fixedBytes, err = field.bytesValue()
			if err == nil && len(fixedBytes) != externalapi.PublicKeySize {
				err = errors.Errorf("invalid public key size %d", len(fixedBytes))
			}
			copy(tx.SenderPublicKey[:], fixedBytes)
		case txRecipientField:
			tx.Recipient, err = field.addressValue()
		case txValueField:
			tx.Value, err = field.uint64Value()
		case txFeeField:
			tx.Fee, err = field.uint64Value()
		case txNonceField:
			tx.Nonce, err = field.uint64Value()
		case txValidityStartHeightField:
			tx.ValidityStartHeight, err = field.uint64Value()
		case txSignatureField:
			fixedBytes, err = field.bytesValue()
			if err == nil && len(fixedBytes) != externalapi.SignatureSize {
				err = errors.Errorf("invalid signature size %d", len(fixedBytes))
			}
			copy(tx.Signature[:], fixedBytes)
		}
		if err != nil {
			return nil, err
		}
	}
	return tx, nil
}
