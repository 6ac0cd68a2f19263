// README: Pricing service computes trip totals from tariff data.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transferhub/internal/types"
)

var (
	ErrBadDistance    = errors.New("distance must be positive")
	ErrUnknownClass   = errors.New("unknown vehicle class")
	ErrUnknownService = errors.New("unknown additional service")
	ErrTariffUnloaded = errors.New("tariff unavailable")
)

// TariffSource yields the currently active tariff. The engine itself holds
// no storage.
type TariffSource interface {
	Active(ctx context.Context) (Tariff, error)
}

type Service struct {
	source TariffSource
}

func NewService(source TariffSource) *Service {
	return &Service{source: source}
}

// Quote prices a trip against the active tariff and returns the rounded
// total together with an itemized breakdown.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (types.Money, Breakdown, error) {
	t, err := s.source.Active(ctx)
	if err != nil {
		return types.Money{}, nil, fmt.Errorf("%w: %v", ErrTariffUnloaded, err)
	}
	return QuoteWithTariff(t, req)
}

// Price implements the reservation module's pricer contract.
func (s *Service) Price(ctx context.Context, distanceKm float64, vehicleClass string, services []string, pickupAt time.Time) (types.Money, error) {
	m, _, err := s.Quote(ctx, QuoteRequest{
		DistanceKm:   distanceKm,
		VehicleClass: vehicleClass,
		Services:     services,
		PickupAt:     pickupAt,
		BookedAt:     time.Now(),
	})
	return m, err
}

// QuoteWithTariff is the pure pricing function.
//
// total = distanceKm * perKm[class] + sum(selected services), then each
// matching modifier is applied multiplicatively in tariff order, and the
// result is rounded half-up to the currency's minimum unit once at the end.
func QuoteWithTariff(t Tariff, req QuoteRequest) (types.Money, Breakdown, error) {
	if req.DistanceKm <= 0 {
		return types.Money{}, nil, ErrBadDistance
	}
	perKm, ok := t.PerKm[req.VehicleClass]
	if !ok {
		return types.Money{}, nil, fmt.Errorf("%w: %q", ErrUnknownClass, req.VehicleClass)
	}

	breakdown := Breakdown{}
	base := req.DistanceKm * float64(perKm)
	breakdown["base"] = types.RoundHalfUp(base)

	total := base
	for _, code := range req.Services {
		price, ok := t.Services[code]
		if !ok {
			return types.Money{}, nil, fmt.Errorf("%w: %q", ErrUnknownService, code)
		}
		total += float64(price)
		breakdown["service:"+code] = price
	}

	for _, mod := range t.Modifiers {
		if mod.Applies(req) {
			total *= mod.Factor
			breakdown["modifier:"+mod.Name] = types.RoundHalfUp(mod.Factor * 100)
		}
	}

	return types.Money{Amount: types.RoundHalfUp(total), Currency: t.Currency}, breakdown, nil
}
