package strategy

import (
	"fmt"
	"math"

	"github.com/eddiefleurent/schrute_spreads/internal/models"
)

// SizeResult is the sizing recommendation for one strategy under a
// capital-risk budget. Contracts is always at least 1: the caller still
// needs a number to show even when the budget cannot cover one contract,
// and MeetsReward carries the flag.
type SizeResult struct {
	Contracts   int     `json:"contracts"`
	TotalReward float64 `json:"total_reward"`
	MeetsReward bool    `json:"meets_reward"`
}

// Size computes the largest quantity whose worst case stays inside the
// capital budget. maxLossPerContract must be a finite positive value;
// strategies without a bounded loss cannot be sized and must be skipped by
// the caller.
func Size(maxLossPerContract, maxProfitPerContract, capitalBudget, rewardFloor float64) (SizeResult, error) {
	if maxLossPerContract <= 0 || math.IsInf(maxLossPerContract, 0) || math.IsNaN(maxLossPerContract) {
		return SizeResult{}, &models.ValidationError{
			Field:  "max_loss_per_contract",
			Reason: fmt.Sprintf("must be a finite positive value (got %v)", maxLossPerContract),
		}
	}

	contracts := int(math.Floor(capitalBudget / maxLossPerContract))
	if contracts < 1 {
		contracts = 1
	}

	totalReward := maxProfitPerContract * float64(contracts)
	return SizeResult{
		Contracts:   contracts,
		TotalReward: totalReward,
		MeetsReward: totalReward >= rewardFloor,
	}, nil
}
