package ledger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocorp/engine/internal/company"
)

func newLedgerState(t *testing.T) *company.State {
	t.Helper()
	st := company.NewState(zerolog.Nop())
	st.AddLocation("AI Lab", "", []string{"gpu", "desk"})
	return st
}

func TestSettleWorkerRevenueAndCosts(t *testing.T) {
	st := newLedgerState(t)
	st.Ledger.Balance = 100

	active, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", "")
	require.NoError(t, err)
	active.RecordAction("stay in AI Lab: ok", true)
	failed, err := st.CreateWorker("Bruno", company.RoleExecutor, "m", "AI Lab", "")
	require.NoError(t, err)
	failed.RecordAction("move to Basement: error", false)

	net := NewSettler(st, false, zerolog.Nop()).Settle()

	// Revenue 10 for one active worker; cost 5+5 workers + 2 inventory.
	assert.Equal(t, -2.0, net)
	assert.Equal(t, 98.0, st.Ledger.Balance)
	assert.Equal(t, []float64{98}, st.Ledger.History)
}

func TestSettleFloorsBalance(t *testing.T) {
	st := newLedgerState(t)
	st.Ledger.Balance = 3
	_, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", "")
	require.NoError(t, err)

	NewSettler(st, false, zerolog.Nop()).Settle()

	// 3 - (5 + 2) is negative, so the balance is raised to the floor.
	assert.Equal(t, 10.0, st.Ledger.Balance)
}

func TestSettleRecognizesServiceRevenueOnce(t *testing.T) {
	st := newLedgerState(t)
	st.Ledger.Balance = 50

	svc := company.NewService("Audit", "", "Clara", 10, company.PricingHourly, 12)
	svc.LogStatus(company.ServiceCompleted, "done")
	st.Services = append(st.Services, svc)

	settler := NewSettler(st, false, zerolog.Nop())
	settler.Settle()
	assert.Equal(t, 170.0, st.Ledger.Balance) // 50 + 12*10
	assert.True(t, svc.RevenueRecognized)

	settler.Settle()
	assert.Equal(t, 170.0, st.Ledger.Balance)
	assert.Len(t, st.Ledger.History, 2)
}

func TestSettleUnlimitedMode(t *testing.T) {
	st := newLedgerState(t)
	st.Ledger.Balance = 0

	NewSettler(st, true, zerolog.Nop()).Settle()

	assert.Equal(t, unlimitedBalanceFloor, st.Ledger.Balance)
	assert.Equal(t, []float64{unlimitedBalanceFloor}, st.Ledger.History)
}

func TestSettleAppendsHistoryOnEmptyCycle(t *testing.T) {
	st := newLedgerState(t)
	st.Ledger.Balance = 40

	settler := NewSettler(st, false, zerolog.Nop())
	for i := 0; i < 3; i++ {
		settler.Settle()
	}
	// One history entry per cycle, even with zero activity.
	assert.Len(t, st.Ledger.History, 3)
	assert.Equal(t, 40.0, st.Ledger.Balance)
}

func TestInventoryCostOnlyForOccupiedLocations(t *testing.T) {
	st := newLedgerState(t)
	st.AddLocation("Warehouse", "", []string{"a", "b", "c"})
	st.Ledger.Balance = 100
	w, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", "")
	require.NoError(t, err)
	w.RecordAction("stay: ok", true)

	net := NewSettler(st, false, zerolog.Nop()).Settle()

	// Warehouse is unoccupied; its inventory carries no cost.
	assert.Equal(t, 3.0, net) // 10 - 5 - 2
}
