// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lottery

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/votelot/server/models"
)

var (
	ErrNegativePool        = errors.New("prize pool must not be negative")
	ErrInvalidDistribution = errors.New("invalid prize distribution")
	ErrUnknownRewardType   = errors.New("unknown reward type")
)

// Reward describes what the winners of a draw receive.
type Reward interface {
	rewardType() string
}

// MonetaryReward splits TotalPool across winners. Ranks present in
// Distribution get their percentage; any rank missing from it falls back
// to an equal share of the whole pool.
type MonetaryReward struct {
	TotalPool    decimal.Decimal
	Distribution []models.PrizeTier
}

func (MonetaryReward) rewardType() string { return models.RewardMonetary }

// NonMonetaryReward carries no money, only a description of the prize.
type NonMonetaryReward struct {
	Description string
}

func (NonMonetaryReward) rewardType() string { return models.RewardNonMonetary }

// PrizeShare is one winner's allocated prize, in rank order.
type PrizeShare struct {
	Ticket      models.LotteryTicket
	Rank        int
	Amount      decimal.Decimal
	Percentage  decimal.Decimal
	Type        string
	Description string
}

var oneHundred = decimal.NewFromInt(100)

// Allocate assigns a prize to each winner. Winners must be in rank order as
// returned by SelectWinners; index 0 is rank 1.
func Allocate(winners []models.LotteryTicket, reward Reward) ([]PrizeShare, error) {
	switch rw := reward.(type) {
	case NonMonetaryReward:
		shares := make([]PrizeShare, len(winners))
		for i, t := range winners {
			shares[i] = PrizeShare{
				Ticket:      t,
				Rank:        i + 1,
				Amount:      decimal.Zero,
				Percentage:  decimal.Zero,
				Type:        models.RewardNonMonetary,
				Description: rw.Description,
			}
		}
		return shares, nil

	case MonetaryReward:
		if rw.TotalPool.IsNegative() {
			return nil, ErrNegativePool
		}
		if err := ValidateDistribution(rw.Distribution); err != nil {
			return nil, err
		}

		byRank := make(map[int]decimal.Decimal, len(rw.Distribution))
		for _, tier := range rw.Distribution {
			byRank[tier.Rank] = tier.Percentage
		}

		count := decimal.NewFromInt(int64(len(winners)))
		shares := make([]PrizeShare, len(winners))
		for i, t := range winners {
			rank := i + 1
			pct, ok := byRank[rank]
			var amount decimal.Decimal
			if ok {
				amount = rw.TotalPool.Mul(pct).Div(oneHundred)
			} else {
				// Divide the pool directly rather than going through the
				// percentage, which would truncate at division precision.
				pct = oneHundred.Div(count)
				amount = rw.TotalPool.Div(count)
			}
			shares[i] = PrizeShare{
				Ticket:     t,
				Rank:       rank,
				Amount:     amount,
				Percentage: pct,
				Type:       models.RewardMonetary,
			}
		}
		return shares, nil

	default:
		return nil, ErrUnknownRewardType
	}
}

// ValidateDistribution rejects malformed tiers: non-positive or duplicate
// ranks, or percentages outside (0, 100]. A distribution that does not
// cover every rank or sum to 100 is legal; uncovered ranks equal-split.
func ValidateDistribution(dist []models.PrizeTier) error {
	seen := make(map[int]bool, len(dist))
	for _, tier := range dist {
		if tier.Rank < 1 {
			return fmt.Errorf("%w: rank %d must be positive", ErrInvalidDistribution, tier.Rank)
		}
		if seen[tier.Rank] {
			return fmt.Errorf("%w: duplicate rank %d", ErrInvalidDistribution, tier.Rank)
		}
		seen[tier.Rank] = true
		if !tier.Percentage.IsPositive() || tier.Percentage.GreaterThan(oneHundred) {
			return fmt.Errorf("%w: rank %d percentage %s out of range", ErrInvalidDistribution, tier.Rank, tier.Percentage)
		}
	}
	return nil
}

// DistributionComplete reports whether every rank up to winnerCount has a
// tier and the tiers sum to exactly 100. Callers use this to warn election
// creators about partial distributions; it is not an error.
func DistributionComplete(dist []models.PrizeTier, winnerCount int) bool {
	if len(dist) == 0 {
		return false
	}
	sum := decimal.Zero
	covered := make(map[int]bool, len(dist))
	for _, tier := range dist {
		covered[tier.Rank] = true
		sum = sum.Add(tier.Percentage)
	}
	for rank := 1; rank <= winnerCount; rank++ {
		if !covered[rank] {
			return false
		}
	}
	return sum.Equal(oneHundred)
}

// RewardFor builds the Reward for an election's lottery settings.
func RewardFor(e models.Election) (Reward, error) {
	switch e.LotteryRewardType {
	case models.RewardNonMonetary:
		return NonMonetaryReward{Description: e.LotteryPrizeDesc}, nil
	case models.RewardMonetary:
		pool, err := decimal.NewFromString(e.LotteryTotalPool)
		if err != nil {
			return nil, fmt.Errorf("invalid prize pool %q: %w", e.LotteryTotalPool, err)
		}
		return MonetaryReward{TotalPool: pool, Distribution: e.LotteryDistribution}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRewardType, e.LotteryRewardType)
	}
}
