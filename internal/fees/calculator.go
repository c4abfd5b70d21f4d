package fees

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
)

// Breakdown is the full fee computation for one stint. All amounts are
// integer minor units; the identities
//
//	TotalChargeCents  = GrossCents + BookingFeeCents
//	GrossCents        = NetPayoutCents + ProfessionalFeeCents + GatewayCostCents
//
// hold exactly for every input.
type Breakdown struct {
	GrossCents             int64 `json:"gross_cents"`
	Urgent                 bool  `json:"urgent"`
	BookingFeePercent      int   `json:"booking_fee_percent"`
	BookingFeeCents        int64 `json:"booking_fee_cents"`
	TotalChargeCents       int64 `json:"total_charge_cents"`
	ProfessionalFeePercent int   `json:"professional_fee_percent"`
	ProfessionalFeeCents   int64 `json:"professional_fee_cents"`
	GatewayCostCents       int64 `json:"gateway_cost_cents"`
	NetPayoutCents         int64 `json:"net_payout_cents"`
	PlatformRevenueCents   int64 `json:"platform_revenue_cents"`
	ScheduleVersion        int   `json:"schedule_version"`
}

// Calculate computes the fee breakdown for a gross amount under the given
// schedule. Pure: no I/O, no clock, no globals. A net payout that would go
// negative is a configuration fault and fails loudly instead of clamping.
func Calculate(grossCents int64, urgent bool, schedule Schedule) (Breakdown, error) {
	if grossCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be non-negative")
	}
	if err := schedule.Validate(); err != nil {
		return Breakdown{}, pkgerrors.Wrap(pkgerrors.CodeFeeConfiguration, err, "invalid fee schedule").
			WithDetails(map[string]any{"schedule_version": schedule.Version})
	}

	bookingPercent := schedule.BookingPercent(urgent)
	bookingFee := percentOf(grossCents, bookingPercent)
	professionalFee := percentOf(grossCents, schedule.ProfessionalPercent)

	gatewayCost := schedule.GatewayCost(grossCents - professionalFee)
	netPayout := grossCents - professionalFee - gatewayCost

	if netPayout < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeFeeConfiguration, "net payout is negative").
			WithDetails(map[string]any{
				"gross_cents":            grossCents,
				"urgent":                 urgent,
				"professional_fee_cents": professionalFee,
				"gateway_cost_cents":     gatewayCost,
				"schedule_version":       schedule.Version,
			})
	}

	return Breakdown{
		GrossCents:             grossCents,
		Urgent:                 urgent,
		BookingFeePercent:      bookingPercent,
		BookingFeeCents:        bookingFee,
		TotalChargeCents:       grossCents + bookingFee,
		ProfessionalFeePercent: schedule.ProfessionalPercent,
		ProfessionalFeeCents:   professionalFee,
		GatewayCostCents:       gatewayCost,
		NetPayoutCents:         netPayout,
		PlatformRevenueCents:   bookingFee + professionalFee,
		ScheduleVersion:        schedule.Version,
	}, nil
}

// percentOf applies a whole percent to an amount with a single round-half-up
// step at minor-unit granularity. Nothing here ever touches float64.
func percentOf(amountCents int64, percent int) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
