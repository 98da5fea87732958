// Package plans holds plan-family rules and the server-side price
// calculation used by checkout.
package plans

import (
	"github.com/shopspring/decimal"
)

// DiscountTiers are the percentages applied to the 1st, 2nd, 3rd and 4th+ pet
// of a discount-eligible family.
var DiscountTiers = []int{0, 5, 10, 15}

func discountFor(index int, eligible bool) int {
	if !eligible {
		return 0
	}
	if index >= len(DiscountTiers) {
		return DiscountTiers[len(DiscountTiers)-1]
	}
	return DiscountTiers[index]
}

type Line struct {
	Index           int   `json:"index"`
	BaseAmount      int64 `json:"base_amount"`
	DiscountPercent int   `json:"discount_percent"`
	Amount          int64 `json:"amount"`
}

type Quote struct {
	Lines    []Line `json:"lines"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// Price applies the pet-position discount to basePrice, rounding half up to
// the minor unit.
func Price(basePrice int64, index int, eligible bool) int64 {
	pct := discountFor(index, eligible)
	if pct == 0 {
		return basePrice
	}
	factor := decimal.NewFromInt(int64(100 - pct)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(basePrice).Mul(factor).Round(0).IntPart()
}

// NewQuote prices petCount pets of one plan.
func NewQuote(basePrice int64, petCount int, policy FamilyPolicy) Quote {
	q := Quote{Lines: make([]Line, 0, petCount)}
	for i := 0; i < petCount; i++ {
		amount := Price(basePrice, i, policy.MultiPetDiscount)
		q.Lines = append(q.Lines, Line{
			Index:           i,
			BaseAmount:      basePrice,
			DiscountPercent: discountFor(i, policy.MultiPetDiscount),
			Amount:          amount,
		})
		q.Subtotal += basePrice
		q.Total += amount
	}
	q.Discount = q.Subtotal - q.Total
	return q
}
