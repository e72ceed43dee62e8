// Package ledger computes the per-cycle financial settlement.
package ledger

import (
	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
)

// Settlement tariffs.
const (
	revenuePerActiveWorker = 10.0
	costPerWorker          = 5.0
	costPerInventoryItem   = 1.0

	balanceFloor          = 10.0
	unlimitedCycleCredit  = 1000.0
	unlimitedBalanceFloor = 5000.0
)

// Settler applies the end-of-cycle settlement. Caller holds the state
// write lock.
type Settler struct {
	state     *company.State
	unlimited bool
	logger    zerolog.Logger
}

// NewSettler builds a settler.
func NewSettler(state *company.State, unlimited bool, logger zerolog.Logger) *Settler {
	return &Settler{
		state:     state,
		unlimited: unlimited,
		logger:    logger.With().Str("component", "ledger").Logger(),
	}
}

// Settle closes the cycle's books: worker revenue and costs, one-time
// service revenue recognition, the balance floor, and exactly one
// balance-history append. A settlement never fails; it logs and floors.
func (s *Settler) Settle() float64 {
	var revenue, cost float64

	for _, w := range s.state.Workers {
		cost += costPerWorker
		if w.LastActionOK() {
			revenue += revenuePerActiveWorker
		}
	}

	occupied := make(map[string]bool)
	for _, w := range s.state.Workers {
		occupied[w.Location] = true
	}
	for name, loc := range s.state.Locations {
		if occupied[name] {
			cost += costPerInventoryItem * float64(len(loc.Inventory))
		}
	}

	for _, svc := range s.state.Services {
		if svc.Status != company.ServiceCompleted || svc.RevenueRecognized {
			continue
		}
		amount := svc.Revenue()
		revenue += amount
		svc.RevenueRecognized = true
		s.state.AppendEvent("Recognized %.1f revenue for service %q", amount, svc.Name)
	}

	net := revenue - cost
	s.state.Ledger.Balance += net

	if s.unlimited {
		s.state.Ledger.Balance += unlimitedCycleCredit
		if s.state.Ledger.Balance < unlimitedBalanceFloor {
			s.state.Ledger.Balance = unlimitedBalanceFloor
		}
	} else if s.state.Ledger.Balance < balanceFloor {
		// Raised to the floor, not merely stopped from falling.
		s.state.Ledger.Balance = balanceFloor
	}

	s.state.Ledger.History = append(s.state.Ledger.History, s.state.Ledger.Balance)
	s.state.AppendEvent("Cycle settled: revenue %.1f, cost %.1f, balance %.1f", revenue, cost, s.state.Ledger.Balance)
	s.logger.Debug().Float64("revenue", revenue).Float64("cost", cost).
		Float64("balance", s.state.Ledger.Balance).Msg("settlement")
	return net
}
