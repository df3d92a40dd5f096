// Package rules 定义自成交风控规则引擎
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
)

// Trigger 触发拒绝的候选订单信息
type Trigger struct {
	Index          int             // 候选订单在列表中的下标
	ClOrderID      string          // 候选订单编号
	Side           model.Side      // 候选订单方向
	Price          decimal.Decimal // 候选订单价格
	WindowMeasured bool            // 两边都有时间戳, 时间窗口被实际计算
	DeltaMs        int64           // 时间戳差值绝对值, 未计算时为 0
}

// CheckResult 检查结果
type CheckResult struct {
	Passed   bool     // 是否通过
	Bypassed bool     // 规则关闭直接放行
	RuleID   string   // 触发的规则ID
	RuleName string   // 触发的规则名称
	Reason   string   // 拒绝原因
	Code     string   // 错误码
	Trigger  *Trigger // 拒绝时的触发订单
}

// NewPassResult 创建通过结果
func NewPassResult(checkerName string) *CheckResult {
	return &CheckResult{
		Passed:   true,
		RuleName: checkerName,
	}
}

// NewBypassResult 创建规则关闭时的放行结果
func NewBypassResult(checkerName string) *CheckResult {
	return &CheckResult{
		Passed:   true,
		Bypassed: true,
		RuleName: checkerName,
	}
}

// NewRejectedResult 创建拒绝结果
func NewRejectedResult(ruleID, ruleName, reason, code string, trigger *Trigger) *CheckResult {
	return &CheckResult{
		Passed:   false,
		RuleID:   ruleID,
		RuleName: ruleName,
		Reason:   reason,
		Code:     code,
		Trigger:  trigger,
	}
}

// CheckRequest 检查请求
type CheckRequest struct {
	Incoming *model.Order
	Existing []*model.Order
}

// RuleChecker 规则检查器接口
type RuleChecker interface {
	// Name 返回检查器名称
	Name() string
	// Check 检查订单, 不得修改请求
	Check(req *CheckRequest) *CheckResult
}

// RulePriority 规则优先级
type RulePriority int

const (
	PriorityHighest RulePriority = 1   // 最高优先级
	PriorityHigh    RulePriority = 10  // 高优先级 (自成交)
	PriorityNormal  RulePriority = 50  // 普通优先级
	PriorityLow     RulePriority = 100 // 低优先级
)
