package externalapi

import "fmt"

// AccountType is the type tag of an account
type AccountType uint8

const (
	// AccountTypeBasic is a plain account controlled by a single key
	AccountTypeBasic AccountType = iota

	// AccountTypeVesting is an account whose funds unlock over time
	// and that is controlled by its owner's key
	AccountTypeVesting
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeBasic:
		return "basic"
	case AccountTypeVesting:
		return "vesting"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsKnown returns whether t is one of the supported account types
func (t AccountType) IsKnown() bool {
	switch t {
	case AccountTypeBasic, AccountTypeVesting:
		return true
	default:
		return false
	}
}

// VestingData holds the parameters of a vesting account
type VestingData struct {
	Owner       Address
	Start       uint64
	StepBlocks  uint64
	StepAmount  uint64
	TotalAmount uint64
}

// Account is the state of an address in the accounts tree
type Account struct {
	Type    AccountType
	Balance uint64
	Nonce   uint64

	// Vesting is set if and only if Type is AccountTypeVesting
	Vesting *VestingData
}

// NewEmptyAccount returns the account held by every address that
// does not appear in the accounts tree
func NewEmptyAccount() *Account {
	return &Account{Type: AccountTypeBasic}
}

// IsEmpty returns whether the account is indistinguishable from an
// account that was never touched
func (a *Account) IsEmpty() bool {
	return a.Type == AccountTypeBasic && a.Balance == 0 && a.Nonce == 0
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	clone := *a
	if a.Vesting != nil {
		vestingClone := *a.Vesting
		clone.Vesting = &vestingClone
	}
	return &clone
}

// Equal returns whether a equals other
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.Type != other.Type || a.Balance != other.Balance || a.Nonce != other.Nonce {
		return false
	}
	if a.Vesting == nil || other.Vesting == nil {
		return a.Vesting == other.Vesting
	}
	return *a.Vesting == *other.Vesting
}

// MinCap returns the part of a vesting account's balance that is
// still locked at the given height
func (v *VestingData) MinCap(height uint64) uint64 {
	if v.StepBlocks == 0 || v.StepAmount == 0 {
		return 0
	}
	if height < v.Start {
		return v.TotalAmount
	}
	steps := (height - v.Start) / v.StepBlocks
	// Guard against overflow of steps*StepAmount
	if steps >= v.TotalAmount/v.StepAmount+1 {
		return 0
	}
	unlocked := steps * v.StepAmount
	if unlocked >= v.TotalAmount {
		return 0
	}
	return v.TotalAmount - unlocked
}

func (a *Account) String() string {
	return fmt.Sprintf("%s account (balance: %d, nonce: %d)", a.Type, a.Balance, a.Nonce)
}
