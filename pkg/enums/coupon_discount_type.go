package enums

import "fmt"

// CouponDiscountType distinguishes percentage coupons from fixed-amount ones.
type CouponDiscountType string

const (
	CouponDiscountPercentage CouponDiscountType = "percentage"
	CouponDiscountFixed      CouponDiscountType = "fixed"
)

var validCouponDiscountTypes = []CouponDiscountType{
	CouponDiscountPercentage,
	CouponDiscountFixed,
}

// String implements fmt.Stringer.
func (c CouponDiscountType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponDiscountType.
func (c CouponDiscountType) IsValid() bool {
	for _, candidate := range validCouponDiscountTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponDiscountType converts raw input into a CouponDiscountType.
func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	for _, candidate := range validCouponDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon discount type %q", value)
}
