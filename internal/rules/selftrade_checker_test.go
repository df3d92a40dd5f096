package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
)

func newOrder(id, shareholder string, side model.Side, price string, ts *int64) *model.Order {
	p := decimal.RequireFromString(price)
	return &model.Order{
		ClOrderID:     id,
		ShareholderID: shareholder,
		Market:        model.MarketXSHG,
		SecurityID:    "600030",
		Side:          side,
		Qty:           100,
		Price:         &p,
		Timestamp:     ts,
	}
}

func buyOrder(id, shareholder, price string, ts *int64) *model.Order {
	return newOrder(id, shareholder, model.SideBuy, price, ts)
}

func sellOrder(id, shareholder, price string, ts *int64) *model.Order {
	return newOrder(id, shareholder, model.SideSell, price, ts)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func newEnabledChecker() *SelfTradeChecker {
	return NewSelfTradeChecker(SelfTradeConfig{Enabled: true, TimeWindowMs: 60000})
}

func TestSelfTradeChecker_DifferentShareholderNeverMatches(t *testing.T) {
	checker := newEnabledChecker()
	ts := int64Ptr(1000)

	sides := []model.Side{model.SideBuy, model.SideSell}
	prices := []string{"0", "9.99", "10.00", "10.01"}
	timestamps := []*int64{nil, ts, int64Ptr(500000)}

	for _, sa := range sides {
		for _, sb := range sides {
			for _, pa := range prices {
				for _, pb := range prices {
					for _, tb := range timestamps {
						a := newOrder("A", "SH1", sa, pa, ts)
						b := newOrder("B", "SH2", sb, pb, tb)
						assert.False(t, checker.IsSelfTrade(a, b))
						assert.False(t, checker.IsSelfTrade(b, a))
					}
				}
			}
		}
	}
}

func TestSelfTradeChecker_IsSelfTrade(t *testing.T) {
	checker := newEnabledChecker()
	ts := int64Ptr(1_700_000_000_000)

	base := func() (*model.Order, *model.Order) {
		return buyOrder("O1", "SH1", "10.50", ts), sellOrder("O2", "SH1", "10.30", ts)
	}

	tests := []struct {
		name   string
		mutate func(a, b *model.Order)
		want   bool
	}{
		{"all conditions match", func(a, b *model.Order) {}, true},
		{"different security", func(a, b *model.Order) { b.SecurityID = "600031" }, false},
		{"different market", func(a, b *model.Order) { b.Market = model.MarketXSHE }, false},
		{"same side buy", func(a, b *model.Order) { b.Side = model.SideBuy }, false},
		{"same side sell", func(a, b *model.Order) { a.Side = model.SideSell }, false},
		{"buy below sell", func(a, b *model.Order) { p := decimal.RequireFromString("10.29"); a.Price = &p }, false},
		{"buy equals sell", func(a, b *model.Order) { p := decimal.RequireFromString("10.3"); a.Price = &p }, true},
		{"incoming missing timestamp", func(a, b *model.Order) { a.Timestamp = nil }, true},
		{"existing missing timestamp", func(a, b *model.Order) { b.Timestamp = nil }, true},
		{"both missing timestamp", func(a, b *model.Order) { a.Timestamp = nil; b.Timestamp = nil }, true},
		{"outside window", func(a, b *model.Order) { b.Timestamp = int64Ptr(*ts - 60001) }, false},
		{"window boundary inclusive", func(a, b *model.Order) { b.Timestamp = int64Ptr(*ts + 60000) }, true},
		{"status ignored", func(a, b *model.Order) { b.Status = model.OrderStatusCancelled }, true},
		{"qty ignored", func(a, b *model.Order) { b.Qty = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base()
			tt.mutate(a, b)
			assert.Equal(t, tt.want, checker.IsSelfTrade(a, b))
		})
	}
}

func TestSelfTradeChecker_SameSideNeverMatches(t *testing.T) {
	checker := newEnabledChecker()

	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		for _, price := range []string{"0", "10", "1000000"} {
			a := newOrder("A", "SH1", side, "10", nil)
			b := newOrder("B", "SH1", side, price, nil)
			assert.False(t, checker.IsSelfTrade(a, b))
		}
	}
}

func TestPriceCrossable(t *testing.T) {
	tests := []struct {
		name string
		a, b *model.Order
		want bool
	}{
		{"buy above sell", buyOrder("A", "SH1", "10.5", nil), sellOrder("B", "SH1", "10.3", nil), true},
		{"buy equals sell", buyOrder("A", "SH1", "10.50", nil), sellOrder("B", "SH1", "10.5", nil), true},
		{"buy below sell", buyOrder("A", "SH1", "10.3", nil), sellOrder("B", "SH1", "10.5", nil), false},
		{"sell incoming crosses buy", sellOrder("A", "SH1", "10.3", nil), buyOrder("B", "SH1", "10.5", nil), true},
		{"sell incoming above buy", sellOrder("A", "SH1", "11.0", nil), buyOrder("B", "SH1", "10.5", nil), false},
		{"zero prices", buyOrder("A", "SH1", "0", nil), sellOrder("B", "SH1", "0", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceCrossable(tt.a, tt.b))
		})
	}
}

func TestSelfTradeChecker_WithinTimeWindow(t *testing.T) {
	checker := NewSelfTradeChecker(SelfTradeConfig{Enabled: true, TimeWindowMs: 0})

	// 窗口为 0 时只有相同时间戳在窗口内
	assert.True(t, checker.WithinTimeWindow(buyOrder("A", "SH1", "1", int64Ptr(5)), sellOrder("B", "SH1", "1", int64Ptr(5))))
	assert.False(t, checker.WithinTimeWindow(buyOrder("A", "SH1", "1", int64Ptr(5)), sellOrder("B", "SH1", "1", int64Ptr(6))))
	assert.True(t, checker.WithinTimeWindow(buyOrder("A", "SH1", "1", nil), sellOrder("B", "SH1", "1", int64Ptr(6))))
}

func TestSelfTradeChecker_Evaluate_Scenario(t *testing.T) {
	checker := newEnabledChecker()
	ts := int64Ptr(1_700_000_000_000)

	incoming := buyOrder("IN1", "SH1", "10.5", ts)
	existing := []*model.Order{
		sellOrder("EX1", "SH2", "10.5", ts),
		sellOrder("EX2", "SH1", "11.0", ts),
		sellOrder("EX3", "SH1", "10.3", int64Ptr(*ts-1000)),
	}

	result := checker.Evaluate(incoming, existing)
	require.NotNil(t, result)
	assert.False(t, result.Passed)
	assert.Equal(t, model.ReasonSelfTradeDetected, result.Reason)
	assert.Equal(t, SelfTradeCode, result.Code)

	require.NotNil(t, result.Trigger)
	assert.Equal(t, 2, result.Trigger.Index)
	assert.Equal(t, "EX3", result.Trigger.ClOrderID)
	assert.Equal(t, model.SideSell, result.Trigger.Side)
	assert.True(t, decimal.RequireFromString("10.3").Equal(result.Trigger.Price))
	assert.True(t, result.Trigger.WindowMeasured)
	assert.Equal(t, int64(1000), result.Trigger.DeltaMs)

	// 前两笔单独存在时不触发
	result = checker.Evaluate(incoming, existing[:2])
	assert.True(t, result.Passed)
}

func TestSelfTradeChecker_Evaluate_EmptyExisting(t *testing.T) {
	checker := newEnabledChecker()

	result := checker.Evaluate(buyOrder("IN1", "SH1", "10.5", int64Ptr(1000)), []*model.Order{})
	assert.True(t, result.Passed)
	assert.False(t, result.Bypassed)
	assert.Nil(t, result.Trigger)
	assert.Empty(t, result.Reason)
}

func TestSelfTradeChecker_Evaluate_OutsideWindow(t *testing.T) {
	checker := newEnabledChecker()

	incoming := buyOrder("IN1", "SH1", "10.5", int64Ptr(1_700_000_100_000))
	existing := []*model.Order{sellOrder("EX1", "SH1", "10.3", int64Ptr(1_700_000_000_000))}

	result := checker.Evaluate(incoming, existing)
	assert.True(t, result.Passed)
}

func TestSelfTradeChecker_Evaluate_MissingTimestampRejects(t *testing.T) {
	checker := newEnabledChecker()

	incoming := buyOrder("IN1", "SH1", "10.5", nil)
	existing := []*model.Order{sellOrder("EX1", "SH1", "10.5", int64Ptr(1000))}

	result := checker.Evaluate(incoming, existing)
	assert.False(t, result.Passed)
	require.NotNil(t, result.Trigger)
	assert.False(t, result.Trigger.WindowMeasured)
	assert.Zero(t, result.Trigger.DeltaMs)
}

func TestSelfTradeChecker_Evaluate_Disabled(t *testing.T) {
	checker := NewSelfTradeChecker(SelfTradeConfig{Enabled: false, TimeWindowMs: 60000})

	incoming := buyOrder("IN1", "SH1", "10.5", nil)
	existing := []*model.Order{sellOrder("EX1", "SH1", "10.0", nil)}

	result := checker.Evaluate(incoming, existing)
	assert.True(t, result.Passed)
	assert.True(t, result.Bypassed)
	assert.False(t, checker.Enabled())
}

func TestSelfTradeChecker_Evaluate_FirstMatchWins(t *testing.T) {
	checker := newEnabledChecker()

	incoming := sellOrder("IN1", "SH1", "10.0", nil)
	existing := []*model.Order{
		buyOrder("EX1", "SH1", "9.0", nil),
		buyOrder("EX2", "SH1", "10.0", nil),
		buyOrder("EX3", "SH1", "12.0", nil),
	}

	result := checker.Evaluate(incoming, existing)
	assert.False(t, result.Passed)
	require.NotNil(t, result.Trigger)
	assert.Equal(t, "EX2", result.Trigger.ClOrderID)
	assert.Equal(t, 1, result.Trigger.Index)
}

func TestSelfTradeChecker_Evaluate_DoesNotMutateInput(t *testing.T) {
	checker := newEnabledChecker()

	incoming := buyOrder("IN1", "SH1", "10.5", int64Ptr(1000))
	existing := []*model.Order{sellOrder("EX1", "SH1", "10.0", int64Ptr(2000))}
	before := *existing[0]

	checker.Evaluate(incoming, existing)
	assert.Equal(t, before, *existing[0])
	assert.Len(t, existing, 1)
}

func TestSelfTradeChecker_NormalizedSideEquivalence(t *testing.T) {
	checker := newEnabledChecker()

	short := newOrder("A", "SH1", model.NormalizeSide("B"), "10", nil)
	long := newOrder("A", "SH1", model.NormalizeSide("BUY"), "10", nil)
	sell := newOrder("B", "SH1", model.NormalizeSide("S"), "10", nil)

	assert.Equal(t, short.Side, long.Side)
	assert.Equal(t, checker.IsSelfTrade(long, sell), checker.IsSelfTrade(short, sell))
	assert.True(t, checker.IsSelfTrade(short, sell))
}

func TestSelfTradeChecker_EmptyShareholderStillMatches(t *testing.T) {
	checker := newEnabledChecker()

	incoming := buyOrder("", "", "10.5", nil)
	existing := []*model.Order{sellOrder("", "", "10.5", nil)}

	result := checker.Evaluate(incoming, existing)
	assert.False(t, result.Passed)
	require.NotNil(t, result.Trigger)
	assert.Equal(t, 0, result.Trigger.Index)

	// 空股东号与非空股东号不视为同一账户
	existing[0].ShareholderID = "SH1"
	assert.True(t, checker.Evaluate(incoming, existing).Passed)
}
