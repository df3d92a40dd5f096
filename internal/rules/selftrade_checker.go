package rules

import (
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
)

const (
	SelfTradeRuleID   = "SELF_TRADE_CHECK"
	SelfTradeRuleName = "自成交检查"
	SelfTradeCode     = model.ReasonSelfTradeDetected
)

// SelfTradeConfig 自成交检查配置
type SelfTradeConfig struct {
	Enabled      bool
	TimeWindowMs int64
}

// SelfTradeChecker 自成交检查器
//
// 同一股东号在同一市场同一证券上, 方向相反、价格可成交且时间接近的两笔订单视为自成交。
// 检查器创建后不可变, 可并发使用。
type SelfTradeChecker struct {
	cfg SelfTradeConfig
}

// NewSelfTradeChecker 创建自成交检查器
func NewSelfTradeChecker(cfg SelfTradeConfig) *SelfTradeChecker {
	return &SelfTradeChecker{cfg: cfg}
}

// Name 返回检查器名称
func (c *SelfTradeChecker) Name() string {
	return "selftrade_checker"
}

// Enabled 是否启用
func (c *SelfTradeChecker) Enabled() bool {
	return c.cfg.Enabled
}

// TimeWindowMs 时间窗口 (毫秒)
func (c *SelfTradeChecker) TimeWindowMs() int64 {
	return c.cfg.TimeWindowMs
}

// Check 检查订单
func (c *SelfTradeChecker) Check(req *CheckRequest) *CheckResult {
	return c.Evaluate(req.Incoming, req.Existing)
}

// Evaluate 按列表顺序扫描已有订单, 命中第一笔即拒绝
func (c *SelfTradeChecker) Evaluate(incoming *model.Order, existing []*model.Order) *CheckResult {
	if !c.cfg.Enabled {
		return NewBypassResult(c.Name())
	}

	for i, candidate := range existing {
		if candidate == nil {
			continue
		}
		if !c.IsSelfTrade(incoming, candidate) {
			continue
		}

		delta, measured := timeDelta(incoming, candidate)
		return NewRejectedResult(
			SelfTradeRuleID,
			SelfTradeRuleName,
			model.ReasonSelfTradeDetected,
			SelfTradeCode,
			&Trigger{
				Index:          i,
				ClOrderID:      candidate.ClOrderID,
				Side:           candidate.Side,
				Price:          candidate.PriceValue(),
				WindowMeasured: measured,
				DeltaMs:        delta,
			},
		)
	}

	return NewPassResult(c.Name())
}

// IsSelfTrade 判断两笔订单是否构成自成交
func (c *SelfTradeChecker) IsSelfTrade(a, b *model.Order) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ShareholderID != b.ShareholderID {
		return false
	}
	if a.SecurityID != b.SecurityID {
		return false
	}
	if a.Market != b.Market {
		return false
	}
	if !a.Side.Opposite(b.Side) {
		return false
	}
	if !PriceCrossable(a, b) {
		return false
	}
	return c.WithinTimeWindow(a, b)
}

// PriceCrossable 买价不低于卖价即可成交, 两笔订单须方向相反
func PriceCrossable(a, b *model.Order) bool {
	buy, sell := a, b
	if !a.Side.IsBuy() {
		buy, sell = b, a
	}
	return buy.PriceValue().GreaterThanOrEqual(sell.PriceValue())
}

// WithinTimeWindow 时间戳差值不超过窗口; 任一方缺失时间戳视为在窗口内
func (c *SelfTradeChecker) WithinTimeWindow(a, b *model.Order) bool {
	delta, measured := timeDelta(a, b)
	if !measured {
		return true
	}
	return delta <= c.cfg.TimeWindowMs
}

func timeDelta(a, b *model.Order) (int64, bool) {
	if a.Timestamp == nil || b.Timestamp == nil {
		return 0, false
	}
	delta := *a.Timestamp - *b.Timestamp
	if delta < 0 {
		delta = -delta
	}
	return delta, true
}
