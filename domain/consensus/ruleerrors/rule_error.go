package ruleerrors

import (
	"fmt"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock = newRuleError("ErrDuplicateBlock")

	// ErrBlockVersionIsUnknown indicates that the block version is unknown.
	ErrBlockVersionIsUnknown = newRuleError("ErrBlockVersionIsUnknown")

	// ErrMalformedBlock indicates that a block is missing its header,
	// its body or one of the hashes its header commits to
	ErrMalformedBlock = newRuleError("ErrMalformedBlock")

	// ErrBlockSizeTooHigh indicates the serialized size of a block exceeds
	// the maximum allowed size.
	ErrBlockSizeTooHigh = newRuleError("ErrBlockSizeTooHigh")

	// ErrExtraDataTooLong indicates a block carries more extra data than
	// allowed.
	ErrExtraDataTooLong = newRuleError("ErrExtraDataTooLong")

	// ErrTimeTooOld indicates the time is not after the median time of
	// the last several blocks per the chain consensus rules.
	ErrTimeTooOld = newRuleError("ErrTimeTooOld")

	// ErrTimeTooMuchInTheFuture indicates that the block timestamp is too much in the future.
	ErrTimeTooMuchInTheFuture = newRuleError("ErrTimeTooMuchInTheFuture")

	// ErrWrongBlockHeight indicates a block's height is not one above its
	// predecessor's.
	ErrWrongBlockHeight = newRuleError("ErrWrongBlockHeight")

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// valued based on difficulty regarted rules.
	ErrUnexpectedDifficulty = newRuleError("ErrUnexpectedDifficulty")

	// ErrTargetTooHigh indicates specified bits do not align with
	// the expected value either because it is above the valid
	// range.
	ErrTargetTooHigh = newRuleError("ErrTargetTooHigh")

	// ErrNegativeTarget indicates specified bits do not align with
	// the expected value either because it is not positive.
	ErrNegativeTarget = newRuleError("ErrNegativeTarget")

	// ErrInvalidPoW indicates that the block proof-of-work is invalid.
	ErrInvalidPoW = newRuleError("ErrInvalidPoW")

	// ErrBadInterlink indicates the declared interlink is not the one
	// derived from the block's predecessor.
	ErrBadInterlink = newRuleError("ErrBadInterlink")

	// ErrBadInterlinkHash indicates the interlink hash in the header does
	// not match the hash of the interlink.
	ErrBadInterlinkHash = newRuleError("ErrBadInterlinkHash")

	// ErrBadBodyHash indicates the body hash in the header does not match
	// the hash of the body.
	ErrBadBodyHash = newRuleError("ErrBadBodyHash")

	// ErrBadAccountsHash indicates the accounts hash in the header does not
	// match the accounts tree root after applying the block.
	ErrBadAccountsHash = newRuleError("ErrBadAccountsHash")

	// ErrDuplicateTx indicates a block contains an identical transaction
	// (or at least two transactions which hash to the same value). A
	// valid block may only contain unique transactions.
	ErrDuplicateTx = newRuleError("ErrDuplicateTx")

	// ErrBadTxValue indicates a transaction's value is zero or its value
	// and fee overflow.
	ErrBadTxValue = newRuleError("ErrBadTxValue")

	// ErrSenderIsRecipient indicates a transaction sends to its own sender.
	ErrSenderIsRecipient = newRuleError("ErrSenderIsRecipient")

	// ErrTxOutsideValidityWindow indicates a transaction is included in a
	// block outside of its validity window.
	ErrTxOutsideValidityWindow = newRuleError("ErrTxOutsideValidityWindow")

	// ErrInvalidSignature indicates a transaction signature does not verify.
	ErrInvalidSignature = newRuleError("ErrInvalidSignature")

	// ErrSenderMismatch indicates a transaction is signed by a key that does
	// not control its sender.
	ErrSenderMismatch = newRuleError("ErrSenderMismatch")

	// ErrInsufficientFunds indicates a transaction spends more than its
	// sender's balance.
	ErrInsufficientFunds = newRuleError("ErrInsufficientFunds")

	// ErrBadNonce indicates a transaction's nonce is not its sender's
	// next nonce.
	ErrBadNonce = newRuleError("ErrBadNonce")

	// ErrVestingLocked indicates a transaction spends funds of a vesting
	// account that are still locked.
	ErrVestingLocked = newRuleError("ErrVestingLocked")

	// ErrVestingRecipient indicates a transaction sends funds to a vesting
	// account.
	ErrVestingRecipient = newRuleError("ErrVestingRecipient")

	// ErrBalanceOverflow indicates an account's balance would overflow.
	ErrBalanceOverflow = newRuleError("ErrBalanceOverflow")

	// ErrInvalidAncestorBlock indicates that an ancestor of this block has
	// already failed validation.
	ErrInvalidAncestorBlock = newRuleError("ErrInvalidAncestorBlock")

	// ErrKnownInvalid indicates that this block has already failed
	// validation.
	ErrKnownInvalid = newRuleError("ErrKnownInvalid")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules. The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// IsRuleError returns whether err is, or wraps, a RuleError
func IsRuleError(err error) bool {
	return errors.As(err, &RuleError{})
}

// ErrMissingParents indicates a block points to an unknown predecessor.
type ErrMissingParents struct {
	MissingParentHashes []*externalapi.DomainHash
}

func (e ErrMissingParents) Error() string {
	return fmt.Sprintf("missing the following parent hashes: %v", e.MissingParentHashes)
}

// NewErrMissingParents creates a new ErrMissingParents error wrapped in a RuleError
func NewErrMissingParents(missingParentHashes []*externalapi.DomainHash) error {
	return errors.WithStack(RuleError{
		message: "ErrMissingParents",
		inner:   ErrMissingParents{missingParentHashes},
	})
}

// IsMissingParentsError returns whether err is, or wraps, an ErrMissingParents
func IsMissingParentsError(err error) bool {
	return errors.As(err, &ErrMissingParents{})
}

// ErrInvalidTransaction indicates that a transaction of a block broke one
// of the account rules
type ErrInvalidTransaction struct {
	TransactionIndex int
	Transaction      *externalapi.DomainTransaction
	Err              error
}

func (e ErrInvalidTransaction) Error() string {
	return fmt.Sprintf("transaction #%d (sender %s, nonce %d): %s",
		e.TransactionIndex, e.Transaction.Sender, e.Transaction.Nonce, e.Err)
}

// Unwrap satisfies the errors.Unwrap interface
func (e ErrInvalidTransaction) Unwrap() error {
	return e.Err
}

// NewErrInvalidTransaction creates a new ErrInvalidTransaction error wrapped in a RuleError
func NewErrInvalidTransaction(index int, tx *externalapi.DomainTransaction, err error) error {
	return errors.WithStack(RuleError{
		message: "ErrInvalidTransaction",
		inner:   ErrInvalidTransaction{TransactionIndex: index, Transaction: tx, Err: err},
	})
}

// ErrInvalidBranch indicates that a block failed while its branch was being
// applied to the main chain. InvalidBlockHashes holds that block and its
// descendants on the branch.
type ErrInvalidBranch struct {
	InvalidBlockHashes []*externalapi.DomainHash
	Err                error
}

func (e ErrInvalidBranch) Error() string {
	return fmt.Sprintf("invalid branch starting at %s: %s", e.InvalidBlockHashes[0], e.Err)
}

// Unwrap satisfies the errors.Unwrap interface
func (e ErrInvalidBranch) Unwrap() error {
	return e.Err
}

// NewErrInvalidBranch creates a new ErrInvalidBranch error wrapped in a RuleError
func NewErrInvalidBranch(invalidBlockHashes []*externalapi.DomainHash, err error) error {
	return errors.WithStack(RuleError{
		message: "ErrInvalidBranch",
		inner:   ErrInvalidBranch{InvalidBlockHashes: invalidBlockHashes, Err: err},
	})
}
