package blockvalidator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
	"github.com/nipopow/nipowd/util/mstime"
)

func newIsolationValidator(params *chainconfig.Params) model.BlockValidator {
	return New(params.PowMax, params.SkipProofOfWork, params.BlockVersion, params.MaxBlockSize,
		params.MaxExtraDataSize, params.TransactionValidityWindow, params.MaxTimestampDrift,
		nil, nil, nil, nil, nil, nil)
}

func newTestBlock(t *testing.T, params *chainconfig.Params, transactions []*externalapi.DomainTransaction) *externalapi.DomainBlock {
	prevHash := externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{1})
	body := &externalapi.DomainBlockBody{Transactions: transactions}
	interlink := externalapi.BlockInterlink{prevHash}
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            params.BlockVersion,
			PrevHash:           prevHash,
			InterlinkHash:      consensushashing.InterlinkHash(interlink),
			BodyHash:           consensushashing.BodyHash(body),
			AccountsHash:       externalapi.NewZeroHash(),
			Bits:               difficulty.BigToCompact(params.PowMax),
			Height:             10,
			TimeInMilliseconds: mstime.NowMilliseconds(),
		},
		Interlink: interlink,
		Body:      body,
	}
}

func TestValidateBlockInIsolation(t *testing.T) {
	testutils.ForAllNets(t, true, func(t *testing.T, params *chainconfig.Params) {
		validator := newIsolationValidator(params)
		users, err := testutils.NewTestUsers(2)
		if err != nil {
			t.Fatalf("NewTestUsers: %+v", err)
		}
		validTx, err := users[0].SignedTransaction(users[1].Address, 10, 1, 0, 5)
		if err != nil {
			t.Fatalf("SignedTransaction: %+v", err)
		}

		tests := []struct {
			name          string
			mutate        func(block *externalapi.DomainBlock)
			expectedError error
		}{
			{
				name:   "valid block",
				mutate: func(block *externalapi.DomainBlock) {},
			},
			{
				name:          "missing body",
				mutate:        func(block *externalapi.DomainBlock) { block.Body = nil },
				expectedError: ruleerrors.ErrMalformedBlock,
			},
			{
				name:          "missing accounts hash",
				mutate:        func(block *externalapi.DomainBlock) { block.Header.AccountsHash = nil },
				expectedError: ruleerrors.ErrMalformedBlock,
			},
			{
				name:          "empty interlink",
				mutate:        func(block *externalapi.DomainBlock) { block.Interlink = nil },
				expectedError: ruleerrors.ErrMalformedBlock,
			},
			{
				name:          "unknown version",
				mutate:        func(block *externalapi.DomainBlock) { block.Header.Version++ },
				expectedError: ruleerrors.ErrBlockVersionIsUnknown,
			},
			{
				name: "extra data too long",
				mutate: func(block *externalapi.DomainBlock) {
					block.Body.ExtraData = make([]byte, params.MaxExtraDataSize+1)
				},
				expectedError: ruleerrors.ErrExtraDataTooLong,
			},
			{
				name: "block too big",
				mutate: func(block *externalapi.DomainBlock) {
					for consensushashing.BlockSize(block) <= params.MaxBlockSize {
						tx := validTx.Clone()
						tx.Nonce = uint64(len(block.Body.Transactions))
						block.Body.Transactions = append(block.Body.Transactions, tx)
					}
				},
				expectedError: ruleerrors.ErrBlockSizeTooHigh,
			},
			{
				name: "duplicate transaction",
				mutate: func(block *externalapi.DomainBlock) {
					block.Body.Transactions = append(block.Body.Transactions, validTx.Clone())
				},
				expectedError: ruleerrors.ErrDuplicateTx,
			},
			{
				name:          "zero value",
				mutate:        func(block *externalapi.DomainBlock) { block.Body.Transactions[0].Value = 0 },
				expectedError: ruleerrors.ErrBadTxValue,
			},
			{
				name: "sender is recipient",
				mutate: func(block *externalapi.DomainBlock) {
					block.Body.Transactions[0].Recipient = block.Body.Transactions[0].Sender
				},
				expectedError: ruleerrors.ErrSenderIsRecipient,
			},
			{
				name:          "transaction not yet valid",
				mutate:        func(block *externalapi.DomainBlock) { block.Header.Height = 4 },
				expectedError: ruleerrors.ErrTxOutsideValidityWindow,
			},
			{
				name: "transaction expired",
				mutate: func(block *externalapi.DomainBlock) {
					block.Header.Height = 5 + params.TransactionValidityWindow
				},
				expectedError: ruleerrors.ErrTxOutsideValidityWindow,
			},
		}

		for _, test := range tests {
			block := newTestBlock(t, params, []*externalapi.DomainTransaction{validTx.Clone()})
			test.mutate(block)
			err := validator.ValidateBlockInIsolation(block)
			if test.expectedError == nil {
				if err != nil {
					t.Fatalf("%s: ValidateBlockInIsolation: %+v", test.name, err)
				}
				continue
			}
			if !errors.Is(err, test.expectedError) {
				t.Fatalf("%s: expected %v but got %v", test.name, test.expectedError, err)
			}
		}
	})
}

func TestValidateProofOfWork(t *testing.T) {
	testutils.ForAllNets(t, false, func(t *testing.T, params *chainconfig.Params) {
		validator := newIsolationValidator(params)

		block := newTestBlock(t, params, nil)
		block.Header.Bits = difficulty.BigToCompact(new(big.Int).Lsh(params.PowMax, 1))
		err := validator.ValidateProofOfWork(block)
		if !errors.Is(err, ruleerrors.ErrTargetTooHigh) {
			t.Fatalf("expected ErrTargetTooHigh but got %v", err)
		}

		block.Header.Bits = 0
		err = validator.ValidateProofOfWork(block)
		if !errors.Is(err, ruleerrors.ErrNegativeTarget) {
			t.Fatalf("expected ErrNegativeTarget but got %v", err)
		}

		// With a target of 1, no nonce is realistically a solution
		block.Header.Bits = difficulty.BigToCompact(big.NewInt(1))
		err = validator.ValidateProofOfWork(block)
		if !errors.Is(err, ruleerrors.ErrInvalidPoW) {
			t.Fatalf("expected ErrInvalidPoW but got %v", err)
		}

		// Solve the block with the maximum target
		block.Header.Bits = difficulty.BigToCompact(params.PowMax)
		for {
			err = validator.ValidateProofOfWork(block)
			if err == nil {
				break
			}
			if !errors.Is(err, ruleerrors.ErrInvalidPoW) {
				t.Fatalf("ValidateProofOfWork: %+v", err)
			}
			block.Header.Nonce++
		}
	})
}

func TestValidateBlockBody(t *testing.T) {
	params := chainconfig.SimnetParams
	validator := newIsolationValidator(&params)
	users, err := testutils.NewTestUsers(2)
	if err != nil {
		t.Fatalf("NewTestUsers: %+v", err)
	}
	tx, err := users[0].SignedTransaction(users[1].Address, 10, 1, 0, 5)
	if err != nil {
		t.Fatalf("SignedTransaction: %+v", err)
	}

	block := newTestBlock(t, &params, []*externalapi.DomainTransaction{tx})
	err = validator.ValidateBlockBody(block)
	if err != nil {
		t.Fatalf("ValidateBlockBody: %+v", err)
	}

	block.Header.BodyHash = externalapi.NewZeroHash()
	err = validator.ValidateBlockBody(block)
	if !errors.Is(err, ruleerrors.ErrBadBodyHash) {
		t.Fatalf("expected ErrBadBodyHash but got %v", err)
	}

	block.Body.Transactions[0].Value++
	block.Header.BodyHash = consensushashing.BodyHash(block.Body)
	err = validator.ValidateBlockBody(block)
	if !errors.Is(err, ruleerrors.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature but got %v", err)
	}
}
