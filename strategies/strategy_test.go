package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/bartrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(c float64) market.Bar {
	return market.Bar{Open: c, High: c + 1, Low: c - 1, Close: c}
}

func TestNewStrategy(t *testing.T) {
	for _, name := range []string{"trend_following", "Trend-Following", "scalping", "noop"} {
		s, err := New(name, DefaultParams())
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}

	_, err := New("martingale", DefaultParams())
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.False(t, Known("martingale"))
	assert.True(t, Known(" scalping "))
}

func TestNewReturnsIndependentInstances(t *testing.T) {
	a, err := New("scalping", Params{})
	require.NoError(t, err)
	b, err := New("scalping", Params{})
	require.NoError(t, err)

	ctx := &Context{}
	for _, c := range []float64{1, 2, 3, 4} {
		a.OnBar(bar(c), ctx)
	}
	// b has seen nothing, so it cannot signal yet.
	assert.Equal(t, market.None, b.OnBar(bar(5), ctx))
	assert.Equal(t, market.Sell, a.OnBar(bar(5), ctx))
}

func TestNoop(t *testing.T) {
	s := Noop{}
	for i := 0; i < 10; i++ {
		assert.Equal(t, market.None, s.OnBar(bar(100), &Context{}))
	}
}

func TestContextPosition(t *testing.T) {
	var nilCtx *Context
	assert.Equal(t, market.Flat, nilCtx.Position())

	ctx := &Context{}
	ctx.SetPosition(market.Short)
	assert.Equal(t, market.Short, ctx.Position())
}

func TestScalping(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		pos    market.Side
		want   market.Signal
	}{
		{"warmup", []float64{1, 2, 3, 4}, market.Flat, market.None},
		{"rising sells", []float64{5, 5, 1, 2, 3}, market.Flat, market.Sell},
		{"falling buys", []float64{5, 5, 3, 2, 1}, market.Flat, market.Buy},
		{"long exits on down close", []float64{5, 5, 1, 3, 2}, market.Long, market.Exit},
		{"short exits on up close", []float64{5, 5, 3, 1, 2}, market.Short, market.Exit},
		{"flat no exit", []float64{5, 5, 1, 3, 2}, market.Flat, market.None},
		{"unchanged", []float64{5, 5, 5, 5, 5}, market.Long, market.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScalping(Params{})
			ctx := &Context{}
			ctx.SetPosition(tt.pos)
			var got market.Signal
			for _, c := range tt.closes {
				got = s.OnBar(bar(c), ctx)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func trendParams() Params {
	return Params{
		EMAPeriod:        3,
		ATRPeriod:        3,
		KeltnerMult:      0.5,
		BarsConfirmBreak: 2,
	}
}

func TestTrendFollowingWarmup(t *testing.T) {
	s := NewTrendFollowing(trendParams())
	ctx := &Context{}
	// minLen = max(3,3)+5 = 8
	for i := 0; i < 7; i++ {
		assert.Equal(t, market.None, s.OnBar(bar(100+float64(i)*50), ctx))
	}
}

func TestTrendFollowingBreakoutUp(t *testing.T) {
	s := NewTrendFollowing(trendParams())
	ctx := &Context{}
	for i := 0; i < 8; i++ {
		require.Equal(t, market.None, s.OnBar(bar(100), ctx))
	}

	// Each jump closes well above mid + ATR.
	assert.Equal(t, market.None, s.OnBar(bar(200), ctx))
	assert.Equal(t, market.Buy, s.OnBar(bar(400), ctx))
}

func TestTrendFollowingBreakoutDown(t *testing.T) {
	s := NewTrendFollowing(trendParams())
	ctx := &Context{}
	for i := 0; i < 8; i++ {
		s.OnBar(bar(1000), ctx)
	}
	assert.Equal(t, market.None, s.OnBar(bar(900), ctx))
	assert.Equal(t, market.Sell, s.OnBar(bar(700), ctx))
}

func TestTrendFollowingExitOnMidCross(t *testing.T) {
	p := trendParams()
	p.BarsConfirmBreak = 100
	s := NewTrendFollowing(p)
	ctx := &Context{}
	for i := 0; i < 8; i++ {
		s.OnBar(bar(100), ctx)
	}
	ctx.SetPosition(market.Long)
	assert.Equal(t, market.Exit, s.OnBar(bar(99.5), ctx))

	ctx.SetPosition(market.Short)
	assert.Equal(t, market.Exit, s.OnBar(bar(101), ctx))
}

func TestTrendFollowingFilters(t *testing.T) {
	p := trendParams()
	p.MinATRPoints = 1000
	s := NewTrendFollowing(p)
	ctx := &Context{}
	for i := 0; i < 8; i++ {
		s.OnBar(bar(100), ctx)
	}
	assert.Equal(t, market.None, s.OnBar(bar(200), ctx))
	assert.Equal(t, market.None, s.OnBar(bar(400), ctx))

	p = trendParams()
	p.FilterEMASlope = true
	p.MinEMASlopePoints = 1
	s = NewTrendFollowing(p)
	ctx.SetPosition(market.Long)
	for i := 0; i < 8; i++ {
		s.OnBar(bar(100), ctx)
	}
	// Flat slope suppresses the exit too.
	assert.Equal(t, market.None, s.OnBar(bar(100), ctx))
}

func TestTimeFilter(t *testing.T) {
	p := Params{AllowedHours: []int{9, 10}, AllowedWeekdays: []string{"tuesday"}}
	f := p.TimeFilter()

	tue10 := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	tue11 := time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC)
	wed10 := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

	assert.True(t, f.Allows(tue10))
	assert.False(t, f.Allows(tue11))
	assert.False(t, f.Allows(wed10))
	assert.True(t, f.Allows(time.Time{}))
	assert.True(t, Params{}.TimeFilter().Allows(wed10))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.AllowedHours = []int{24}
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.AllowedWeekdays = []string{"Funday"}
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.KeltnerMult = -1
	assert.Error(t, p.Validate())
}
