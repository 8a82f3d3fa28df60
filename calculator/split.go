package calculator

import (
	"github.com/shopspring/decimal"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
)

// Round2 rounds half away from zero to paise. Money is never negative here,
// so that is half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateSplit computes each member's share of a group order.
// Tax and discount are spread in proportion to the member's item MRP:
//
//	taxShare      = round2(totalTax      * itemMRP / totalMRP)
//	discountShare = round2(totalDiscount * itemMRP / totalMRP)
//	finalAmount   = round2(itemMRP + taxShare - discountShare)
//
// Each member is rounded on their own, so the final amounts may drift from
// totalMRP + totalTax - totalDiscount by up to 0.01 per member. Use Reconcile
// to push the remainder onto the last split.
func CalculateSplit(items []models.OrderItem, totalTax, totalDiscount decimal.Decimal) ([]models.OrderSplit, error) {
	if len(items) == 0 {
		return nil, apperr.ForField(apperr.KindInvalidItems, "items", "at least one item is required")
	}
	if totalTax.IsNegative() {
		return nil, apperr.ForField(apperr.KindInvalidTax, "total_tax", "tax cannot be negative")
	}
	if totalDiscount.IsNegative() {
		return nil, apperr.ForField(apperr.KindInvalidDiscount, "total_discount", "discount cannot be negative")
	}

	totalMRP := decimal.Zero
	for _, item := range items {
		if item.ItemMRP.IsNegative() {
			return nil, &apperr.Error{Kind: apperr.KindInvalidItems, UserID: item.UserID, Field: "item_mrp", Msg: "item MRP cannot be negative"}
		}
		totalMRP = totalMRP.Add(item.ItemMRP)
	}
	if !totalMRP.IsPositive() {
		return nil, apperr.ForField(apperr.KindInvalidTotal, "item_mrp", "sum of item MRPs must be positive")
	}
	if totalDiscount.GreaterThan(totalMRP.Add(totalTax)) {
		return nil, apperr.ForField(apperr.KindInvalidDiscount, "total_discount", "discount exceeds order total")
	}

	splits := make([]models.OrderSplit, len(items))
	for i, item := range items {
		taxShare := Round2(totalTax.Mul(item.ItemMRP).Div(totalMRP))
		discountShare := Round2(totalDiscount.Mul(item.ItemMRP).Div(totalMRP))
		splits[i] = models.OrderSplit{
			UserID:         item.UserID,
			OriginalAmount: item.ItemMRP,
			TaxShare:       taxShare,
			DiscountShare:  discountShare,
			FinalAmount:    Round2(item.ItemMRP.Add(taxShare).Sub(discountShare)),
			Approved:       false,
		}
	}
	return splits, nil
}

// Total sums the final amounts of splits.
func Total(splits []models.OrderSplit) decimal.Decimal {
	total := decimal.Zero
	for _, s := range splits {
		total = total.Add(s.FinalAmount)
	}
	return total
}

// Reconcile makes the splits sum exactly to target by moving the rounding
// remainder onto the last split's tax share. Splits are modified in place.
func Reconcile(splits []models.OrderSplit, target decimal.Decimal) {
	if len(splits) == 0 {
		return
	}
	diff := Round2(target).Sub(Total(splits))
	if diff.IsZero() {
		return
	}
	last := &splits[len(splits)-1]
	last.TaxShare = last.TaxShare.Add(diff)
	last.FinalAmount = last.FinalAmount.Add(diff)
}

// Expected is what the splits of items would sum to without rounding.
func Expected(items []models.OrderItem, totalTax, totalDiscount decimal.Decimal) decimal.Decimal {
	total := totalTax.Sub(totalDiscount)
	for _, item := range items {
		total = total.Add(item.ItemMRP)
	}
	return total
}
