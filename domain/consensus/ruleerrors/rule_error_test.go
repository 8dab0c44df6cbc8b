package ruleerrors

import (
	"errors"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	pkgerrors "github.com/pkg/errors"
)

func TestNewErrMissingParents(t *testing.T) {
	missing := externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{255, 255, 255})
	outer := NewErrMissingParents([]*externalapi.DomainHash{missing})
	expectedOuterErr := "ErrMissingParents: missing the following parent hashes: " +
		"[ffffff0000000000000000000000000000000000000000000000000000000000]"

	inner := &ErrMissingParents{}
	if !errors.As(outer, inner) {
		t.Fatal("TestNewErrMissingParents: Outer should contain ErrMissingParents in it")
	}
	if len(inner.MissingParentHashes) != 1 || !inner.MissingParentHashes[0].Equal(missing) {
		t.Fatalf("TestNewErrMissingParents: unexpected missing parents %v", inner.MissingParentHashes)
	}

	rule := &RuleError{}
	if !errors.As(outer, rule) {
		t.Fatal("TestNewErrMissingParents: Outer should contain RuleError in it")
	}
	if rule.message != "ErrMissingParents" {
		t.Fatalf("TestNewErrMissingParents: Expected message = 'ErrMissingParents', found: '%s'", rule.message)
	}
	if outer.Error() != expectedOuterErr {
		t.Fatalf("TestNewErrMissingParents: Expected %s. found: %s", expectedOuterErr, outer.Error())
	}
	if !IsMissingParentsError(outer) || !IsRuleError(outer) {
		t.Fatal("TestNewErrMissingParents: helpers should recognize the error")
	}
}

func TestWrappedRuleErrorIsMatched(t *testing.T) {
	err := pkgerrors.Wrapf(ErrBadBodyHash, "block %s has a bad body hash", "abc")
	if !errors.Is(err, ErrBadBodyHash) {
		t.Fatal("TestWrappedRuleErrorIsMatched: wrapped error should match its sentinel")
	}
	if errors.Is(err, ErrBadAccountsHash) {
		t.Fatal("TestWrappedRuleErrorIsMatched: wrapped error should not match another sentinel")
	}
	if IsMissingParentsError(err) {
		t.Fatal("TestWrappedRuleErrorIsMatched: a bad body hash is not a missing parents error")
	}

	txErr := NewErrInvalidTransaction(3, &externalapi.DomainTransaction{Nonce: 7},
		pkgerrors.Wrap(ErrBadNonce, "expected nonce 6"))
	if !errors.Is(txErr, ErrBadNonce) {
		t.Fatal("TestWrappedRuleErrorIsMatched: invalid transaction error should expose its reason")
	}
	if IsRuleError(pkgerrors.New("storage failure")) {
		t.Fatal("TestWrappedRuleErrorIsMatched: a plain error is not a rule error")
	}
}

func TestNewErrInvalidBranch(t *testing.T) {
	first := externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{1})
	second := externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{2})
	err := NewErrInvalidBranch([]*externalapi.DomainHash{first, second},
		pkgerrors.Wrap(ErrBadAccountsHash, "root mismatch"))

	var branchErr ErrInvalidBranch
	if !errors.As(err, &branchErr) {
		t.Fatal("TestNewErrInvalidBranch: error should contain ErrInvalidBranch")
	}
	if !externalapi.HashesEqual(branchErr.InvalidBlockHashes, []*externalapi.DomainHash{first, second}) {
		t.Fatalf("TestNewErrInvalidBranch: unexpected invalid blocks %v", branchErr.InvalidBlockHashes)
	}
	if !errors.Is(err, ErrBadAccountsHash) || !IsRuleError(err) {
		t.Fatal("TestNewErrInvalidBranch: error should expose its reason and be a rule error")
	}
}
