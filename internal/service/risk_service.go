// Package service 提供自成交风控的业务逻辑
//
// ========================================
// RiskService 自成交风控对接说明
// ========================================
//
// ## 功能概述
// 交易引擎在订单进入撮合前调用 CheckOrder, 携带新订单与同一订单簿中的活跃订单,
// 服务返回是否放行以及拒绝原因。服务本身不维护订单簿, 每次调用相互独立。
//
// ## 调用方 (HTTP Client)
// - POST /api/risk/check
//   - allow=false 时 reason 固定为 SELF_TRADE_DETECTED
//
// ## 消息输出 (Kafka Producer)
// - Topic: risk-alerts
// - 消息类型: DecisionEvent
// - 触发条件: 检测到自成交并拒绝
//
// ## 审计
// - 开启后每次判定写入 eidos_selftrade_audit_logs
//
// ========================================
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/rules"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

const (
	AlertTypeSelfTradeRejected = "SELF_TRADE_REJECTED"
	SeverityWarning            = "warning"
)

// AuditRecorder 审计日志写入
type AuditRecorder interface {
	Create(ctx context.Context, log *model.AuditLog) error
}

// DecisionEvent 自成交拒绝事件
type DecisionEvent struct {
	EventID          string `json:"event_id"`
	AlertType        string `json:"alert_type"`
	Severity         string `json:"severity"`
	RuleID           string `json:"rule_id"`
	Reason           string `json:"reason"`
	ShareholderID    string `json:"shareholder_id"`
	ClOrderID        string `json:"cl_order_id"`
	Market           string `json:"market"`
	SecurityID       string `json:"security_id"`
	Side             string `json:"side"`
	Price            string `json:"price"`
	Qty              int64  `json:"qty"`
	MatchedIndex     int    `json:"matched_index"`
	MatchedClOrderID string `json:"matched_cl_order_id"`
	MatchedSide      string `json:"matched_side"`
	MatchedPrice     string `json:"matched_price"`
	WindowMeasured   bool   `json:"window_measured"`
	TimeDeltaMs      int64  `json:"time_delta_ms"`
	CandidateCount   int    `json:"candidate_count"`
	CreatedAt        int64  `json:"created_at"`
}

// RiskService 自成交风控服务
type RiskService struct {
	engine    *rules.Engine
	selfTrade *rules.SelfTradeChecker

	// 审计 (可选)
	auditRepo AuditRecorder

	// Kafka 生产者 (通过回调设置)
	onDecision func(ctx context.Context, event *DecisionEvent) error
}

// NewRiskService 创建风控服务
func NewRiskService(cfg rules.SelfTradeConfig) *RiskService {
	svc := &RiskService{
		selfTrade: rules.NewSelfTradeChecker(cfg),
	}

	svc.engine = rules.NewEngine()
	svc.engine.RegisterChecker(svc.selfTrade, rules.PriorityHigh)

	metrics.SetSelfTradeEnabled(cfg.Enabled)

	logger.Info("risk engine initialized",
		"checkers", svc.engine.GetCheckerNames(),
		"self_trade_enabled", cfg.Enabled,
		"time_window_ms", cfg.TimeWindowMs)

	return svc
}

// SetOnDecision 设置拒绝事件回调
func (s *RiskService) SetOnDecision(fn func(ctx context.Context, event *DecisionEvent) error) {
	s.onDecision = fn
}

// SetAuditRecorder 设置审计日志写入
func (s *RiskService) SetAuditRecorder(repo AuditRecorder) {
	s.auditRepo = repo
}

// SelfTradeEnabled 自成交检查是否启用
func (s *RiskService) SelfTradeEnabled() bool {
	return s.selfTrade.Enabled()
}

// TimeWindowMs 时间窗口 (毫秒)
func (s *RiskService) TimeWindowMs() int64 {
	return s.selfTrade.TimeWindowMs()
}

// CheckOrder 检查订单是否构成自成交, 请求须已通过字段校验
func (s *RiskService) CheckOrder(ctx context.Context, req *model.RiskCheckRequest) (*model.RiskCheckResponse, error) {
	if req == nil || req.IncomingOrder == nil {
		return nil, errors.ErrInvalidRequest.WithMessage("incomingOrder is required")
	}

	startTime := time.Now()
	incoming := req.IncomingOrder

	result := s.engine.Check(&rules.CheckRequest{
		Incoming: incoming,
		Existing: req.ExistingOrders,
	})
	if result == nil {
		metrics.RecordCheck(metrics.ResultError, string(incoming.Market), len(req.ExistingOrders), time.Since(startTime).Seconds())
		logger.Error("rule engine returned no result",
			"cl_order_id", incoming.ClOrderID)
		return nil, errors.ErrInternal
	}

	duration := time.Since(startTime)
	label := resultLabel(result)
	metrics.RecordCheck(label, string(incoming.Market), len(req.ExistingOrders), duration.Seconds())

	if result.Passed {
		logger.Info("self-trade check passed",
			"cl_order_id", incoming.ClOrderID,
			"shareholder_id", incoming.ShareholderID,
			"security_id", incoming.SecurityID,
			"market", incoming.Market,
			"candidates", len(req.ExistingOrders),
			"bypassed", result.Bypassed)
		s.recordAuditLog(ctx, req, result, duration)
		return model.NewAllowResponse(), nil
	}

	logFields := []interface{}{
		"cl_order_id", incoming.ClOrderID,
		"shareholder_id", incoming.ShareholderID,
		"security_id", incoming.SecurityID,
		"market", incoming.Market,
		"side", incoming.Side,
		"price", incoming.PriceValue().String(),
		"rule_id", result.RuleID,
		"reason", result.Reason,
	}
	if t := result.Trigger; t != nil {
		metrics.RecordTrigger(t.Index)
		logFields = append(logFields,
			"matched_index", t.Index,
			"matched_cl_order_id", t.ClOrderID,
			"matched_side", t.Side,
			"matched_price", t.Price.String(),
			"window_measured", t.WindowMeasured,
			"time_delta_ms", t.DeltaMs)
	}
	logger.Warn("self-trade detected", logFields...)

	s.recordAuditLog(ctx, req, result, duration)
	s.sendDecision(ctx, newDecisionEvent(req, result))

	return model.NewRejectResponse(), nil
}

func resultLabel(result *rules.CheckResult) string {
	switch {
	case result.Bypassed:
		return metrics.ResultBypassed
	case result.Passed:
		return metrics.ResultAllowed
	default:
		return metrics.ResultRejected
	}
}

func newDecisionEvent(req *model.RiskCheckRequest, result *rules.CheckResult) *DecisionEvent {
	incoming := req.IncomingOrder
	event := &DecisionEvent{
		EventID:        uuid.New().String(),
		AlertType:      AlertTypeSelfTradeRejected,
		Severity:       SeverityWarning,
		RuleID:         result.RuleID,
		Reason:         result.Reason,
		ShareholderID:  incoming.ShareholderID,
		ClOrderID:      incoming.ClOrderID,
		Market:         string(incoming.Market),
		SecurityID:     incoming.SecurityID,
		Side:           string(incoming.Side),
		Price:          incoming.PriceValue().String(),
		Qty:            int64(incoming.Qty),
		MatchedIndex:   -1,
		CandidateCount: len(req.ExistingOrders),
		CreatedAt:      time.Now().UnixMilli(),
	}
	if t := result.Trigger; t != nil {
		event.MatchedIndex = t.Index
		event.MatchedClOrderID = t.ClOrderID
		event.MatchedSide = string(t.Side)
		event.MatchedPrice = t.Price.String()
		event.WindowMeasured = t.WindowMeasured
		event.TimeDeltaMs = t.DeltaMs
	}
	return event
}

// sendDecision 发送拒绝事件, 失败只记录日志
func (s *RiskService) sendDecision(ctx context.Context, event *DecisionEvent) {
	if s.onDecision == nil {
		return
	}
	if err := s.onDecision(ctx, event); err != nil {
		logger.Error("failed to send decision event",
			"event_id", event.EventID,
			"cl_order_id", event.ClOrderID,
			"error", err)
	}
}

// recordAuditLog 记录审计日志, 失败只记录日志
func (s *RiskService) recordAuditLog(ctx context.Context, req *model.RiskCheckRequest, result *rules.CheckResult, duration time.Duration) {
	if s.auditRepo == nil {
		return
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		logger.Warn("failed to marshal audit request", "error", err)
	}

	incoming := req.IncomingOrder
	log := &model.AuditLog{
		ClOrderID:      incoming.ClOrderID,
		ShareholderID:  incoming.ShareholderID,
		Market:         string(incoming.Market),
		SecurityID:     incoming.SecurityID,
		Side:           string(incoming.Side),
		Result:         model.AuditResultAllowed,
		MatchedIndex:   -1,
		CandidateCount: len(req.ExistingOrders),
		Request:        string(reqJSON),
		DurationMicros: duration.Microseconds(),
		CreatedAt:      time.Now().UnixMilli(),
	}
	switch {
	case result.Bypassed:
		log.Result = model.AuditResultBypassed
	case !result.Passed:
		log.Result = model.AuditResultRejected
		log.Reason = result.Reason
		if result.Trigger != nil {
			log.MatchedIndex = result.Trigger.Index
			log.MatchedClOrderID = result.Trigger.ClOrderID
		}
	}

	if err := s.auditRepo.Create(ctx, log); err != nil {
		metrics.RecordAuditWrite(false)
		logger.Error("failed to record audit log",
			"cl_order_id", incoming.ClOrderID,
			"error", err)
		return
	}
	metrics.RecordAuditWrite(true)
}
