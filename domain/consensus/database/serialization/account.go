package serialization

import (
	"math"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	accountTypeField    protowire.Number = 1
	accountBalanceField protowire.Number = 2
	accountNonceField   protowire.Number = 3
	accountVestingField protowire.Number = 4
)

const (
	vestingOwnerField       protowire.Number = 1
	vestingStartField       protowire.Number = 2
	vestingStepBlocksField  protowire.Number = 3
	vestingStepAmountField  protowire.Number = 4
	vestingTotalAmountField protowire.Number = 5
)

// SerializeAccount encodes an account as a record
func SerializeAccount(account *externalapi.Account) []byte {
	var b []byte
	b = appendVarintField(b, accountTypeField, uint64(account.Type))
	b = appendVarintField(b, accountBalanceField, account.Balance)
	b = appendVarintField(b, accountNonceField, account.Nonce)
	if account.Vesting != nil {
		var vesting []byte
		vesting = appendBytesField(vesting, vestingOwnerField, account.Vesting.Owner[:])
		vesting = appendVarintField(vesting, vestingStartField, account.Vesting.Start)
		vesting = appendVarintField(vesting, vestingStepBlocksField, account.Vesting.StepBlocks)
		vesting = appendVarintField(vesting, vestingStepAmountField, account.Vesting.StepAmount)
		vesting = appendVarintField(vesting, vestingTotalAmountField, account.Vesting.TotalAmount)
		b = appendBytesField(b, accountVestingField, vesting)
	}
	return b
}

// DeserializeAccount decodes an account record. Accounts of an
// unknown type are rejected.
func DeserializeAccount(data []byte) (*externalapi.Account, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	account := &externalapi.Account{}
	for _, field := range fields {
		switch field.number {
		case accountTypeField:
			var accountType uint64
			accountType, err = field.uint64Value()
			if accountType > math.MaxUint8 || !externalapi.AccountType(accountType).IsKnown() {
				return nil, errors.Errorf("unknown account type %d", accountType)
			}
			account.Type = externalapi.AccountType(accountType)
		case accountBalanceField:
			account.Balance, err = field.uint64Value()
		case accountNonceField:
			account.Nonce, err = field.uint64Value()
		case accountVestingField:
			var vestingBytes []byte
			vestingBytes, err = field.bytesValue()
			if err != nil {
				return nil, err
			}
			account.Vesting, err = deserializeVestingData(vestingBytes)
		}
		if err != nil {
			return nil, err
		}
	}
	if (account.Type == externalapi.AccountTypeVesting) != (account.Vesting != nil) {
		return nil, errors.Errorf("%s account has inconsistent vesting data", account.Type)
	}
	return account, nil
}

func deserializeVestingData(data []byte) (*externalapi.VestingData, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	vesting := &externalapi.VestingData{}
	for _, field := range fields {
		switch field.number {
		case vestingOwnerField:
			vesting.Owner, err = field.addressValue()
		case vestingStartField:
			vesting.Start, err = field.uint64Value()
		case vestingStepBlocksField:
			vesting.StepBlocks, err = field.uint64Value()
		case vestingStepAmountField:
			vesting.StepAmount, err = field.uint64Value()
		case vestingTotalAmountField:
			vesting.TotalAmount, err = field.uint64Value()
		}
		if err != nil {
			return nil, err
		}
	}
	return vesting, nil
}
