package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimMarketDataWalksDeterministically(t *testing.T) {
	ctx := context.Background()

	a := NewSimMarketData(42)
	b := NewSimMarketData(42)

	for i := 0; i < 5; i++ {
		qa, err := a.Read(ctx, "SPY")
		require.NoError(t, err)
		qb, err := b.Read(ctx, "SPY")
		require.NoError(t, err)
		assert.Equal(t, qa.Price, qb.Price, "same seed, same walk")
		assert.Greater(t, qa.Price, 0.0)
		assert.Less(t, qa.Bid, qa.Ask)
	}
}

func TestSimMarketDataSetPrice(t *testing.T) {
	s := NewSimMarketData(1)
	s.SetPrice("SPY", 500)

	q, err := s.Read(context.Background(), "SPY")
	require.NoError(t, err)
	// One walk step from the pinned price, well inside a percent.
	assert.InDelta(t, 500, q.Price, 5)
}

func TestStaticProviders(t *testing.T) {
	ctx := context.Background()

	acct := NewStaticAccount(150_000, 300_000)
	sum, err := acct.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150_000.0, sum.TotalValue)

	acct.Set(90_000, 180_000)
	sum, _ = acct.Read(ctx)
	assert.Equal(t, 90_000.0, sum.TotalValue)

	idx := NewStaticIndex(17.5)
	v, err := idx.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17.5, v)

	idx.Set(45)
	v, _ = idx.Read(ctx)
	assert.Equal(t, 45.0, v)
}

func TestPaperGatewayFillsAtLimit(t *testing.T) {
	ctx := context.Background()
	g := NewPaperGateway()

	res, err := g.Open(ctx, "put_credit_spread", []LegOrder{
		{Contract: "SPY260417P00480000", Quantity: -1, LimitPrice: 3.20},
		{Contract: "SPY260417P00470000", Quantity: 1, LimitPrice: 1.10},
	}, 1)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3.20, res.FillPrices["SPY260417P00480000"])
	assert.Equal(t, 1.10, res.FillPrices["SPY260417P00470000"])

	res, err = g.Close(ctx, "pos-1", "profit_target")
	require.NoError(t, err)
	assert.True(t, res.Success)

	opens, closes := g.Fills()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}
