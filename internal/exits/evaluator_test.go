package exits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(map[string]StrategyRules{
		"put_credit_spread": {ProfitTarget: 0.50, StopLossMultiple: 2.0, DTEFloor: 21},
		"zero_dte_spread":   {ProfitTarget: 0.25, StopLossMultiple: 2.0, DTEFloor: 0},
		"weekly_strangle":   {ProfitTarget: 0.50, StopLossMultiple: 2.0, DTEFloor: 1},
		"covered_strangle":  {ProfitTarget: 0.50, StopLossMultiple: 2.0, DTEFloor: 21, MinHoldDays: 5},
	}, DefaultDefensiveRules())
}

func baseInputs() Inputs {
	return Inputs{
		PositionID:   "pos-1",
		Strategy:     "put_credit_spread",
		EntryBasis:   100,
		DaysToExpiry: 45,
		HeldDays:     10,
		Now:          time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
}

func TestProfitTargetFires(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.PnL = 55 // 55% of basis, target is 50%
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, ProfitTarget, sig.Reason)
	assert.Equal(t, "pos-1", sig.PositionID)

	in.PnL = 45
	assert.Nil(t, e.Evaluate(in), "below target holds")
}

func TestStopLossBeatsDTE(t *testing.T) {
	e := newTestEvaluator()

	// Losing 210 on a 100 basis at 18 DTE: both stop-loss and DTE floor
	// match, but stop-loss is checked first.
	in := baseInputs()
	in.PnL = -210
	in.DaysToExpiry = 18
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, StopLoss, sig.Reason)
}

func TestStopLossThreshold(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.PnL = -199
	assert.Nil(t, e.Evaluate(in), "1.99x holds")

	in.PnL = -200
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, StopLoss, sig.Reason, "2.00x fires")
}

func TestDTEFloor(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.DaysToExpiry = 21
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, DTEExit, sig.Reason, "floor is inclusive")

	in.DaysToExpiry = 22
	assert.Nil(t, e.Evaluate(in))
}

func TestZeroDTEStrategyFloor(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.Strategy = "zero_dte_spread"
	in.DaysToExpiry = 0
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, DTEExit, sig.Reason)

	// The tighter profit target also applies.
	in.DaysToExpiry = 1
	in.PnL = 30
	sig = e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, ProfitTarget, sig.Reason)
}

func TestAssignmentRiskShortPut(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.DaysToExpiry = 5
	in.Strategy = "weekly_strangle"
	in.ShortLegs = []ShortLeg{{Contract: "SPY P510", Right: "put", Strike: 510}}

	// Underlying 500 against a 510 short put: 2% ITM inside the window.
	in.UnderlyingPrice = 500
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, AssignmentRisk, sig.Reason)

	// Same moneyness at 30 DTE is outside the assignment window.
	in.DaysToExpiry = 30
	assert.Nil(t, e.Evaluate(in))

	// Barely ITM, under the 2% put threshold.
	in.DaysToExpiry = 5
	in.UnderlyingPrice = 505
	assert.Nil(t, e.Evaluate(in))
}

func TestAssignmentRiskShortCallTighterThreshold(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.Strategy = "weekly_strangle"
	in.DaysToExpiry = 4
	in.ShortLegs = []ShortLeg{{Contract: "GLD C190", Right: "call", Strike: 190}}

	// 1% ITM fires for calls where it would hold for puts.
	in.UnderlyingPrice = 191.92
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, AssignmentRisk, sig.Reason)

	in.UnderlyingPrice = 190.50
	assert.Nil(t, e.Evaluate(in))
}

func TestMinHoldSuppressesProfitTargetOnly(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.Strategy = "covered_strangle"
	in.PnL = 60
	in.HeldDays = 2 // under the 5-day minimum hold
	assert.Nil(t, e.Evaluate(in))

	in.HeldDays = 5
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, ProfitTarget, sig.Reason)

	// The stop-loss is never suppressed by minimum hold.
	in.HeldDays = 1
	in.PnL = -250
	sig = e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, StopLoss, sig.Reason)
}

func TestDefensiveCrisisIndex(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.IndexLevel = 42
	in.IndexAvailable = true
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, Defensive, sig.Reason)

	// A missing index reading skips the check rather than guessing.
	in.IndexAvailable = false
	assert.Nil(t, e.Evaluate(in))
}

func TestDefensiveDrawdown(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.DrawdownPct = 0.16
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, Defensive, sig.Reason)

	in.DrawdownPct = 0.10
	assert.Nil(t, e.Evaluate(in))
}

func TestFirstMatchSuppressesLowerChecks(t *testing.T) {
	e := newTestEvaluator()

	// Everything is wrong at once; only the highest-priority reason fires.
	in := baseInputs()
	in.PnL = 80
	in.DaysToExpiry = 3
	in.UnderlyingPrice = 400
	in.ShortLegs = []ShortLeg{{Contract: "SPY P510", Right: "put", Strike: 510}}
	in.IndexLevel = 55
	in.IndexAvailable = true
	in.DrawdownPct = 0.30

	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Equal(t, ProfitTarget, sig.Reason)
}

func TestUnknownStrategyFallsBackToDefaults(t *testing.T) {
	e := newTestEvaluator()
	rules := e.Rules("ratio_spread")
	assert.Equal(t, DefaultStrategyRules(), rules)
}

func TestTallyMovesOnlyOnConfirm(t *testing.T) {
	e := newTestEvaluator()

	in := baseInputs()
	in.PnL = 60
	sig := e.Evaluate(in)
	require.NotNil(t, sig)
	assert.Empty(t, e.Tally(), "evaluation alone must not tally")

	e.Confirm(sig)
	e.Confirm(sig)
	e.Confirm(nil) // no-op

	tally := e.Tally()
	assert.Equal(t, 2, tally[ProfitTarget])

	// Tally copies are detached.
	tally[StopLoss] = 99
	assert.Zero(t, e.Tally()[StopLoss])
}
