package coinbasemanager

import (
	"math"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

type coinbaseManager struct {
	baseSubsidy              uint64
	subsidyReductionInterval uint64
}

// New instantiates a new CoinbaseManager
func New(baseSubsidy uint64, subsidyReductionInterval uint64) model.CoinbaseManager {
	return &coinbaseManager{
		baseSubsidy:              baseSubsidy,
		subsidyReductionInterval: subsidyReductionInterval,
	}
}

// Subsidy returns the subsidy amount a block at the provided height should
// have. This is mainly used for determining how much the coinbase for newly
// generated blocks awards as well as validating the coinbase for blocks
// has the expected value.
//
// The subsidy is halved every SubsidyReductionInterval blocks. Mathematically
// this is: baseSubsidy / 2^(height/SubsidyReductionInterval)
//
// At the target block generation rate for the main network, this is
// approximately every 4 years.
func (c *coinbaseManager) Subsidy(height uint64) uint64 {
	if c.subsidyReductionInterval == 0 {
		return c.baseSubsidy
	}

	halvings := height / c.subsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return c.baseSubsidy >> halvings
}

// BlockReward returns the subsidy of a block at the given height plus the
// fees of its transactions
func (c *coinbaseManager) BlockReward(body *externalapi.DomainBlockBody, height uint64) (uint64, error) {
	reward := c.Subsidy(height)
	for i, tx := range body.Transactions {
		if reward > math.MaxUint64-tx.Fee {
			return 0, ruleerrors.NewErrInvalidTransaction(i, tx,
				errors.Wrapf(ruleerrors.ErrBadTxValue, "fee %d overflows the block reward", tx.Fee))
		}
		reward += tx.Fee
	}
	return reward, nil
}
