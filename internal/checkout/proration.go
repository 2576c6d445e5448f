package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
)

// prorateDiscount splits a cart-level discount across vendor groups in
// proportion to each group's subtotal. Shares floor and the leftover cents
// land on the earliest groups, one cent each, so the shares always sum to
// exactly the discount and no share exceeds its group's subtotal.
func prorateDiscount(discountCents int64, groups []cart.VendorGroup) []int64 {
	shares := make([]int64, len(groups))
	if discountCents <= 0 || len(groups) == 0 {
		return shares
	}

	var subtotal int64
	for _, g := range groups {
		subtotal += g.SubtotalCents
	}
	if subtotal <= 0 {
		return shares
	}
	if discountCents > subtotal {
		discountCents = subtotal
	}

	var allocated int64
	for i, g := range groups {
		share := decimal.NewFromInt(discountCents).
			Mul(decimal.NewFromInt(g.SubtotalCents)).
			Div(decimal.NewFromInt(subtotal)).
			Floor().
			IntPart()
		shares[i] = share
		allocated += share
	}

	remainder := discountCents - allocated
	for i := 0; remainder > 0 && i < len(groups); i++ {
		if shares[i] < groups[i].SubtotalCents {
			shares[i]++
			remainder--
		}
	}
	return shares
}
