package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate reports every reason v cannot be used for a booking at hotelID.
func Validate(v *domain.Voucher, hotelID uuid.UUID, today time.Time) error {
	if v == nil {
		return domain.NewValidation("invalid voucher", "voucher does not exist")
	}

	var problems []string
	if v.Status != domain.VoucherActive {
		problems = append(problems, "voucher is not active")
	}
	if v.Quantity <= 0 {
		problems = append(problems, "voucher has no remaining uses")
	}
	if domain.DateOf(v.ExpiresAt).Before(domain.DateOf(today)) {
		problems = append(problems, fmt.Sprintf("voucher expired on %s", v.ExpiresAt.Format(time.DateOnly)))
	}
	if v.HotelID != hotelID {
		problems = append(problems, "voucher belongs to another hotel")
	}
	if v.Percent < 0 || v.Percent > 100 {
		problems = append(problems, fmt.Sprintf("voucher discount %d%% is outside 0..100", v.Percent))
	}
	if len(problems) > 0 {
		return domain.NewValidation("invalid voucher", problems...)
	}
	return nil
}

// ApplyDiscount returns subtotal minus percent of it.
func ApplyDiscount(subtotal decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return subtotal
	}
	discount := subtotal.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)
	return subtotal.Sub(discount).Round(2)
}

// PriceAndRedeem prices the order with the voucher and consumes one unit of
// it inside tx. A lost race for the last unit is a conflict.
func PriceAndRedeem(ctx context.Context, tx domain.Tx, v *domain.Voucher, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.LessThan(v.MinOrderPrice) {
		return decimal.Zero, domain.NewValidation("invalid voucher",
			fmt.Sprintf("order total %s is below the voucher minimum %s", subtotal.String(), v.MinOrderPrice.String()))
	}

	final := ApplyDiscount(subtotal, v.Percent)

	ok, err := tx.RedeemVoucher(ctx, v.ID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "redeem voucher")
	}
	if !ok {
		return decimal.Zero, domain.NewConflict("voucher is out of stock", v.ID.String())
	}
	v.Quantity--
	return final, nil
}
