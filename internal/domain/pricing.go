package domain

// promoRatePercent is the flat promotion discount applied to the subtotal.
const promoRatePercent = 10

// Subtotal sums price times quantity over all items. Negative quantities and
// prices are clamped to zero before multiplying so a malformed line can never
// reduce the subtotal.
func Subtotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		quantity := int64(item.Quantity)
		if quantity < 0 {
			quantity = 0
		}
		price := item.UnitPrice
		if price < 0 {
			price = 0
		}
		total += price * quantity
	}
	return total
}

// OrderTotal derives the payable total. The free-shipping override zeroes the
// shipping component regardless of its computed value.
func OrderTotal(items []OrderItem, shippingPrice int64, freeShipping bool) int64 {
	if freeShipping {
		shippingPrice = 0
	}
	return Subtotal(items) + shippingPrice
}

// PromoDiscount returns floor(subtotal * 10%) when a promotion is applied,
// otherwise zero. The discount reduces the subtotal only; shipping is never
// discounted.
func PromoDiscount(subtotal int64, applied bool) int64 {
	if !applied || subtotal <= 0 {
		return 0
	}
	return subtotal * promoRatePercent / 100
}
