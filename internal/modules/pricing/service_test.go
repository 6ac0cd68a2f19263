// README: Pricing engine tests (tariff math, modifiers, rounding, errors).
package pricing

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Fixed reference times. 2026-03-11 is a Wednesday; 2026-03-14 a Saturday.
var (
	weekdayNoon  = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	weekdayNight = time.Date(2026, 3, 11, 23, 0, 0, 0, time.UTC)
	earlyMorning = time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	saturdayNoon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	julyNoon     = time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
)

// bookedDayBefore gives a lead time well under the early-booking threshold.
func bookedDayBefore(pickup time.Time) time.Time {
	return pickup.Add(-24 * time.Hour)
}

func TestQuoteWithTariff(t *testing.T) {
	tariff := DefaultTariff("EUR")

	tests := []struct {
		name string
		req  QuoteRequest
		want int64
	}{
		{
			name: "standard weekday no modifiers",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     weekdayNoon,
				BookedAt:     bookedDayBefore(weekdayNoon),
			},
			want: 18000, // 40km * 450
		},
		{
			name: "services added before modifiers",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				Services:     []string{"child_seat", "meet_greet"},
				PickupAt:     weekdayNoon,
				BookedAt:     bookedDayBefore(weekdayNoon),
			},
			want: 19300, // 18000 + 500 + 800
		},
		{
			name: "night surcharge late evening",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     weekdayNight,
				BookedAt:     bookedDayBefore(weekdayNight),
			},
			want: 21600, // 18000 * 1.20
		},
		{
			name: "night window wraps past midnight",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     earlyMorning,
				BookedAt:     bookedDayBefore(earlyMorning),
			},
			want: 21600,
		},
		{
			name: "weekend surcharge",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     saturdayNoon,
				BookedAt:     bookedDayBefore(saturdayNoon),
			},
			want: 19800, // 18000 * 1.10
		},
		{
			name: "high season surcharge",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     julyNoon,
				BookedAt:     bookedDayBefore(julyNoon),
			},
			want: 20700, // 18000 * 1.15
		},
		{
			name: "long distance discount",
			req: QuoteRequest{
				DistanceKm:   120,
				VehicleClass: "standard",
				PickupAt:     weekdayNoon,
				BookedAt:     bookedDayBefore(weekdayNoon),
			},
			want: 48600, // 54000 * 0.90
		},
		{
			name: "early booking discount",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "standard",
				PickupAt:     weekdayNoon,
				BookedAt:     weekdayNoon.Add(-200 * time.Hour),
			},
			want: 17100, // 18000 * 0.95
		},
		{
			name: "comfort class rate",
			req: QuoteRequest{
				DistanceKm:   40,
				VehicleClass: "comfort",
				PickupAt:     weekdayNoon,
				BookedAt:     bookedDayBefore(weekdayNoon),
			},
			want: 22000, // 40km * 550
		},
		{
			name: "fractional distance rounded once at the end",
			req: QuoteRequest{
				DistanceKm:   2.223,
				VehicleClass: "standard",
				PickupAt:     weekdayNoon,
				BookedAt:     bookedDayBefore(weekdayNoon),
			},
			want: 1000, // 1000.35 rounds down
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := QuoteWithTariff(tariff, tc.req)
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			if got.Amount != tc.want {
				t.Errorf("amount = %d, want %d", got.Amount, tc.want)
			}
			if got.Currency != "EUR" {
				t.Errorf("currency = %s, want EUR", got.Currency)
			}
		})
	}
}

// TestQuoteModifierOrder pins down that modifiers stack multiplicatively in
// tariff order with a single final rounding, not per-step rounding.
func TestQuoteModifierOrder(t *testing.T) {
	tariff := DefaultTariff("EUR")

	// Saturday night in July, 120km, booked over a week ahead: every
	// modifier in the default tariff applies.
	pickup := time.Date(2026, 7, 18, 23, 0, 0, 0, time.UTC)
	got, breakdown, err := QuoteWithTariff(tariff, QuoteRequest{
		DistanceKm:   120,
		VehicleClass: "standard",
		PickupAt:     pickup,
		BookedAt:     pickup.Add(-400 * time.Hour),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// 54000 * 1.20 * 1.10 * 1.15 * 0.90 * 0.95 = 70086.06 -> 70086
	if got.Amount != 70086 {
		t.Errorf("amount = %d, want 70086", got.Amount)
	}
	for _, name := range []string{"night", "weekend", "season", "long_distance", "early_booking"} {
		if _, ok := breakdown["modifier:"+name]; !ok {
			t.Errorf("breakdown missing modifier %q", name)
		}
	}
}

func TestQuoteErrors(t *testing.T) {
	tariff := DefaultTariff("EUR")
	base := QuoteRequest{
		DistanceKm:   10,
		VehicleClass: "standard",
		PickupAt:     weekdayNoon,
		BookedAt:     bookedDayBefore(weekdayNoon),
	}

	zero := base
	zero.DistanceKm = 0
	if _, _, err := QuoteWithTariff(tariff, zero); !errors.Is(err, ErrBadDistance) {
		t.Errorf("zero distance: got %v, want ErrBadDistance", err)
	}

	badClass := base
	badClass.VehicleClass = "limousine"
	if _, _, err := QuoteWithTariff(tariff, badClass); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("unknown class: got %v, want ErrUnknownClass", err)
	}

	badService := base
	badService.Services = []string{"pet_transport"}
	if _, _, err := QuoteWithTariff(tariff, badService); !errors.Is(err, ErrUnknownService) {
		t.Errorf("unknown service: got %v, want ErrUnknownService", err)
	}
}

func TestServiceQuoteUsesSource(t *testing.T) {
	svc := NewService(StaticSource{Tariff: DefaultTariff("EUR")})

	got, _, err := svc.Quote(context.Background(), QuoteRequest{
		DistanceKm:   40,
		VehicleClass: "standard",
		PickupAt:     weekdayNoon,
		BookedAt:     bookedDayBefore(weekdayNoon),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.Amount != 18000 {
		t.Errorf("amount = %d, want 18000", got.Amount)
	}
}
