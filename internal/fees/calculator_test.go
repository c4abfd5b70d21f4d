package fees

import (
	"testing"

	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name                string
		gross               int64
		urgent              bool
		wantBookingFee      int64
		wantTotalCharge     int64
		wantProfessionalFee int64
		wantGatewayCost     int64
		wantNetPayout       int64
	}{
		{
			name:                "standard shift",
			gross:               5000,
			wantBookingFee:      750,
			wantTotalCharge:     5750,
			wantProfessionalFee: 250,
			wantGatewayCost:     57,
			wantNetPayout:       4693,
		},
		{
			name:                "urgent shift",
			gross:               5000,
			urgent:              true,
			wantBookingFee:      1000,
			wantTotalCharge:     6000,
			wantProfessionalFee: 250,
			wantGatewayCost:     57,
			wantNetPayout:       4693,
		},
		{
			name:                "half cent rounds up",
			gross:               50,
			wantBookingFee:      8,
			wantTotalCharge:     58,
			wantProfessionalFee: 3,
			wantGatewayCost:     0,
			wantNetPayout:       47,
		},
		{
			name:                "free bracket",
			gross:               100,
			wantBookingFee:      15,
			wantTotalCharge:     115,
			wantProfessionalFee: 5,
			wantGatewayCost:     0,
			wantNetPayout:       95,
		},
		{
			name:                "above top bracket pays ceiling",
			gross:               30000,
			wantBookingFee:      4500,
			wantTotalCharge:     34500,
			wantProfessionalFee: 1500,
			wantGatewayCost:     110,
			wantNetPayout:       28390,
		},
		{
			name:                "zero gross",
			gross:               0,
			wantBookingFee:      0,
			wantTotalCharge:     0,
			wantProfessionalFee: 0,
			wantGatewayCost:     0,
			wantNetPayout:       0,
		},
	}

	schedule := scheduleV1
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(tc.gross, tc.urgent, schedule)
			if err != nil {
				t.Fatalf("Calculate error: %v", err)
			}
			if got.BookingFeeCents != tc.wantBookingFee {
				t.Errorf("booking fee: got %d want %d", got.BookingFeeCents, tc.wantBookingFee)
			}
			if got.TotalChargeCents != tc.wantTotalCharge {
				t.Errorf("total charge: got %d want %d", got.TotalChargeCents, tc.wantTotalCharge)
			}
			if got.ProfessionalFeeCents != tc.wantProfessionalFee {
				t.Errorf("professional fee: got %d want %d", got.ProfessionalFeeCents, tc.wantProfessionalFee)
			}
			if got.GatewayCostCents != tc.wantGatewayCost {
				t.Errorf("gateway cost: got %d want %d", got.GatewayCostCents, tc.wantGatewayCost)
			}
			if got.NetPayoutCents != tc.wantNetPayout {
				t.Errorf("net payout: got %d want %d", got.NetPayoutCents, tc.wantNetPayout)
			}
			if got.ScheduleVersion != schedule.Version {
				t.Errorf("schedule version: got %d want %d", got.ScheduleVersion, schedule.Version)
			}

			// Conservation identities must hold for every input.
			if got.TotalChargeCents != got.GrossCents+got.BookingFeeCents {
				t.Errorf("total charge identity broken: %+v", got)
			}
			if got.GrossCents != got.NetPayoutCents+got.ProfessionalFeeCents+got.GatewayCostCents {
				t.Errorf("gross identity broken: %+v", got)
			}
		})
	}
}

func TestCalculateDeterministic(t *testing.T) {
	first, err := Calculate(4999, true, scheduleV1)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Calculate(4999, true, scheduleV1)
		if err != nil {
			t.Fatalf("Calculate error: %v", err)
		}
		if again != first {
			t.Fatalf("calculation not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestCalculateNegativeGross(t *testing.T) {
	_, err := Calculate(-1, false, scheduleV1)
	if err == nil {
		t.Fatal("expected error for negative gross")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCalculateNegativeNet(t *testing.T) {
	// A cost table that exceeds small amounts makes the net go negative.
	schedule := Schedule{
		Version:                99,
		StandardBookingPercent: 15,
		UrgentBookingPercent:   20,
		ProfessionalPercent:    5,
		GatewayCostBrackets:    []CostBracket{{UpTo: 1000, Cost: 500}},
		GatewayCostCeiling:     500,
	}

	_, err := Calculate(100, false, schedule)
	if err == nil {
		t.Fatal("expected error when net payout is negative")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeFeeConfiguration) {
		t.Fatalf("expected fee configuration error, got %v", err)
	}
}

func TestCalculateInvalidSchedule(t *testing.T) {
	schedule := scheduleV1
	schedule.GatewayCostBrackets = []CostBracket{
		{UpTo: 500, Cost: 10},
		{UpTo: 100, Cost: 5},
	}

	_, err := Calculate(1000, false, schedule)
	if err == nil {
		t.Fatal("expected error for out-of-order brackets")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeFeeConfiguration) {
		t.Fatalf("expected fee configuration error, got %v", err)
	}
}

func TestScheduleValidate(t *testing.T) {
	if err := scheduleV1.Validate(); err != nil {
		t.Fatalf("launch schedule must be valid: %v", err)
	}

	decreasing := scheduleV1
	decreasing.GatewayCostBrackets = []CostBracket{
		{UpTo: 100, Cost: 10},
		{UpTo: 500, Cost: 5},
	}
	if err := decreasing.Validate(); err == nil {
		t.Fatal("expected error for decreasing costs")
	}

	lowCeiling := scheduleV1
	lowCeiling.GatewayCostCeiling = 1
	if err := lowCeiling.Validate(); err == nil {
		t.Fatal("expected error for ceiling below top bracket")
	}
}

func TestScheduleForVersion(t *testing.T) {
	schedule, err := ScheduleForVersion(1)
	if err != nil {
		t.Fatalf("ScheduleForVersion error: %v", err)
	}
	if schedule.Version != 1 {
		t.Fatalf("got version %d", schedule.Version)
	}

	if _, err := ScheduleForVersion(42); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestCurrentSchedule(t *testing.T) {
	if got := CurrentSchedule(); got.Version != 1 {
		t.Fatalf("got version %d", got.Version)
	}
}
