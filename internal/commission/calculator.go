package commission

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Line is one level of a computed distribution.
type Line struct {
	BeneficiaryID uuid.UUID
	Level         int
	Rate          decimal.Decimal
	Amount        decimal.Decimal
}

// BaseAmount is the package's commission budget for seats at price.
func BaseAmount(policy models.CommissionPolicy, price decimal.Decimal, seats int) decimal.Decimal {
	count := decimal.NewFromInt(int64(seats))
	switch policy.CommissionType {
	case enums.CommissionTypePercentage:
		return price.Mul(count).Mul(policy.CommissionRate).Div(hundred).Round(2)
	case enums.CommissionTypeFixed:
		return policy.FixedAmount.Mul(count).Round(2)
	default:
		return decimal.Zero
	}
}

// Split divides base between the owner (level 0) and up to maxLevels
// sponsors from chain, nearest first. Each level is rounded half-up to
// cents on its own. The running total never exceeds base: the level that
// would overflow is clamped and nothing further is paid.
func Split(base decimal.Decimal, maxLevels int, owner models.ResellerNode, chain []models.ResellerNode) []Line {
	if !base.IsPositive() {
		return nil
	}
	if maxLevels == 0 {
		return []Line{{BeneficiaryID: owner.ID, Level: 0, Rate: hundred, Amount: base}}
	}

	lines := make([]Line, 0, 1+min(maxLevels, len(chain)))
	remaining := base
	pay := func(beneficiary uuid.UUID, level int, rate decimal.Decimal) bool {
		amount := base.Mul(rate).Div(hundred).Round(2)
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		lines = append(lines, Line{BeneficiaryID: beneficiary, Level: level, Rate: rate, Amount: amount})
		remaining = remaining.Sub(amount)
		return remaining.IsPositive()
	}

	if !pay(owner.ID, 0, owner.OwnCommissionRate) {
		return lines
	}
	for i, sponsor := range chain {
		if i >= maxLevels {
			break
		}
		if !pay(sponsor.ID, i+1, sponsor.UplineCommissionRate) {
			break
		}
	}
	return lines
}

// Total sums line amounts.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}
