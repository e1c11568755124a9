package pricing

import (
	"errors"
	"strings"

	"github.com/catalystschool/checkout/app/models"
)

var (
	ErrUnknownPlan  = errors.New("unknown plan")
	ErrSeatBounds   = errors.New("student count outside plan bounds")
	ErrInvalidCycle = errors.New("invalid billing cycle")
)

// Epsilon is the tolerance used when comparing a client-submitted total
// against the server-computed total.
const Epsilon = 0.01

// Plan is a named pricing tier with a fixed per-seat monthly price and
// seat-count bounds.
type Plan struct {
	Name         string  `json:"name"`
	PricePerSeat float64 `json:"price_per_seat"`
	MinSeats     int     `json:"min_seats"`
	MaxSeats     int     `json:"max_seats"`
}

// The catalog is fixed in-process. The endpoint recomputes the charge from
// it instead of trusting any client-supplied amount.
var plans = []Plan{
	{Name: "Catalyst Starter", PricePerSeat: 15, MinSeats: 10, MaxSeats: 500},
	{Name: "Catalyst AI Pro", PricePerSeat: 25, MinSeats: 10, MaxSeats: 2000},
	{Name: "Catalyst Enterprise", PricePerSeat: 40, MinSeats: 50, MaxSeats: 10000},
}

func normalizePlanName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup finds a plan by name, case-insensitively.
func Lookup(name string) (*Plan, bool) {
	want := normalizePlanName(name)
	for i := range plans {
		if normalizePlanName(plans[i].Name) == want {
			return &plans[i], true
		}
	}
	return nil, false
}

// Plans returns the full catalog.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// Validate returns the canonical monthly total for a plan and seat count.
// Pure function: no side effects, deterministic for given input.
func Validate(planName string, seats int) (float64, error) {
	plan, ok := Lookup(planName)
	if !ok {
		return 0, ErrUnknownPlan
	}
	if seats < plan.MinSeats || seats > plan.MaxSeats {
		return 0, ErrSeatBounds
	}
	return plan.PricePerSeat * float64(seats), nil
}

// TotalFor returns the charge for a plan, seat count and billing cycle.
// Yearly checkout charges twelve months up front.
func TotalFor(planName string, seats int, billingCycle string) (float64, error) {
	monthly, err := Validate(planName, seats)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(strings.TrimSpace(billingCycle)) {
	case models.BillingCycleMonthly:
		return monthly, nil
	case models.BillingCycleYearly:
		return monthly * 12, nil
	default:
		return 0, ErrInvalidCycle
	}
}

// WithinEpsilon reports whether two amounts agree within Epsilon.
func WithinEpsilon(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= Epsilon
}
