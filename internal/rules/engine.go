package rules

import (
	"sort"
	"sync"

	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

// Engine 规则引擎, 按优先级执行检查器, 第一个拒绝即返回
type Engine struct {
	mu       sync.RWMutex
	checkers []checkerWithPriority
}

type checkerWithPriority struct {
	checker  RuleChecker
	priority RulePriority
}

// NewEngine 创建规则引擎
func NewEngine() *Engine {
	return &Engine{
		checkers: make([]checkerWithPriority, 0),
	}
}

// RegisterChecker 注册检查器
func (e *Engine) RegisterChecker(checker RuleChecker, priority RulePriority) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.checkers = append(e.checkers, checkerWithPriority{
		checker:  checker,
		priority: priority,
	})

	// 数字越小优先级越高, 同优先级保持注册顺序
	sort.SliceStable(e.checkers, func(i, j int) bool {
		return e.checkers[i].priority < e.checkers[j].priority
	})

	logger.Info("rule checker registered",
		"name", checker.Name(),
		"priority", int(priority))
}

// Check 执行检查
func (e *Engine) Check(req *CheckRequest) *CheckResult {
	e.mu.RLock()
	checkers := make([]checkerWithPriority, len(e.checkers))
	copy(checkers, e.checkers)
	e.mu.RUnlock()

	bypassed := len(checkers) > 0
	for _, c := range checkers {
		result := c.checker.Check(req)
		if result == nil {
			continue
		}

		if !result.Passed {
			logger.Debug("order check rejected",
				"checker", c.checker.Name(),
				"rule_id", result.RuleID,
				"code", result.Code)
			return result
		}
		bypassed = bypassed && result.Bypassed
	}

	if bypassed {
		return NewBypassResult("engine")
	}
	return NewPassResult("engine")
}

// GetCheckerNames 获取所有检查器名称
func (e *Engine) GetCheckerNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.checkers))
	for i, c := range e.checkers {
		names[i] = c.checker.Name()
	}
	return names
}
