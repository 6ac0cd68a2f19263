// README: Tariff data model; rates, surcharges and modifiers are data, not code.
package pricing

import "time"

// Tariff holds everything needed to price a trip. Amounts are in the
// currency's minimum unit.
type Tariff struct {
	Currency string           `json:"currency"`
	PerKm    map[string]int64 `json:"per_km"`   // vehicle class -> rate per km
	Services map[string]int64 `json:"services"` // service code -> fixed price
	// Modifiers are applied multiplicatively, in slice order. The order is
	// part of the tariff contract: reordering changes results.
	Modifiers []Modifier `json:"modifiers"`
}

// Modifier is a conditional multiplicative adjustment. A modifier applies
// only when every configured predicate field matches; zero values disable
// a predicate.
type Modifier struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`

	// HourFrom/HourTo select a pickup-hour window [from, to), wrapping
	// midnight when from > to. Both -1 disables the window.
	HourFrom int `json:"hour_from"`
	HourTo   int `json:"hour_to"`

	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// MonthFrom/MonthTo select a seasonal window (inclusive). Zero disables.
	MonthFrom time.Month `json:"month_from,omitempty"`
	MonthTo   time.Month `json:"month_to,omitempty"`

	MinDistanceKm float64 `json:"min_distance_km,omitempty"`

	// MinLeadHours applies when the pickup is booked at least this many
	// hours ahead (early-booking discounts).
	MinLeadHours int `json:"min_lead_hours,omitempty"`
}

// QuoteRequest describes one trip to price.
type QuoteRequest struct {
	DistanceKm   float64
	VehicleClass string
	Services     []string
	PickupAt     time.Time
	BookedAt     time.Time
}

// Breakdown itemizes a quote for display and invoicing.
type Breakdown map[string]int64

// DefaultTariff is the compiled-in fallback used when no tariff row exists
// yet (fresh installs, in-memory mode, tests).
func DefaultTariff(currency string) Tariff {
	return Tariff{
		Currency: currency,
		PerKm: map[string]int64{
			"standard": 450,
			"comfort":  550,
			"minivan":  700,
			"vip":      900,
		},
		Services: map[string]int64{
			"child_seat":    500,
			"meet_greet":    800,
			"extra_luggage": 300,
		},
		Modifiers: []Modifier{
			{Name: "night", Factor: 1.20, HourFrom: 22, HourTo: 6},
			{Name: "weekend", Factor: 1.10, HourFrom: -1, HourTo: -1, Weekdays: []time.Weekday{time.Saturday, time.Sunday}},
			{Name: "season", Factor: 1.15, HourFrom: -1, HourTo: -1, MonthFrom: time.July, MonthTo: time.August},
			{Name: "long_distance", Factor: 0.90, HourFrom: -1, HourTo: -1, MinDistanceKm: 100},
			{Name: "early_booking", Factor: 0.95, HourFrom: -1, HourTo: -1, MinLeadHours: 168},
		},
	}
}

// Applies reports whether the modifier matches the given trip.
func (m Modifier) Applies(req QuoteRequest) bool {
	if !(m.HourFrom == -1 && m.HourTo == -1) {
		h := req.PickupAt.Hour()
		if m.HourFrom <= m.HourTo {
			if h < m.HourFrom || h >= m.HourTo {
				return false
			}
		} else if h < m.HourFrom && h >= m.HourTo {
			return false
		}
	}
	if len(m.Weekdays) > 0 {
		found := false
		for _, d := range m.Weekdays {
			if req.PickupAt.Weekday() == d {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if m.MonthFrom != 0 {
		mo := req.PickupAt.Month()
		if mo < m.MonthFrom || mo > m.MonthTo {
			return false
		}
	}
	if m.MinDistanceKm > 0 && req.DistanceKm < m.MinDistanceKm {
		return false
	}
	if m.MinLeadHours > 0 {
		lead := req.PickupAt.Sub(req.BookedAt)
		if lead < time.Duration(m.MinLeadHours)*time.Hour {
			return false
		}
	}
	return true
}
