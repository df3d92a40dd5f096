package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/repository"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/errors"
)

// RiskService 风控服务接口
type RiskService interface {
	CheckOrder(ctx context.Context, req *model.RiskCheckRequest) (*model.RiskCheckResponse, error)
	SelfTradeEnabled() bool
}

// AuditLogLister 审计日志查询接口
type AuditLogLister interface {
	List(ctx context.Context, filter *repository.AuditLogFilter, pagination *repository.Pagination) ([]*model.AuditLog, int64, error)
	CountByResult(ctx context.Context, since int64) (map[string]int64, error)
}

// RiskHandler 风控检查处理器
type RiskHandler struct {
	svc         RiskService
	audit       AuditLogLister
	serviceName string
	port        int
}

// NewRiskHandler 创建风控检查处理器, audit 为 nil 表示未开启审计
func NewRiskHandler(svc RiskService, audit AuditLogLister, serviceName string, port int) *RiskHandler {
	return &RiskHandler{
		svc:         svc,
		audit:       audit,
		serviceName: serviceName,
		port:        port,
	}
}

// Check 自成交检查
// POST /api/risk/check
func (h *RiskHandler) Check(c *gin.Context) {
	var req model.RiskCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	resp, err := h.svc.CheckOrder(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Health 服务健康状态
// GET /api/risk/health
func (h *RiskHandler) Health(c *gin.Context) {
	checker := "disabled"
	if h.svc.SelfTradeEnabled() {
		checker = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": h.serviceName,
		"port":    h.port,
		"checks": gin.H{
			"selfTradeChecker": checker,
		},
	})
}

// ListAuditLogs 查询审计日志
// GET /api/risk/audit-logs?shareholderId=&securityId=&result=&startTime=&endTime=&page=&pageSize=
func (h *RiskHandler) ListAuditLogs(c *gin.Context) {
	if h.audit == nil {
		Error(c, errors.ErrServiceUnavailable.WithMessage("audit log is disabled"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	pagination := repository.NewPagination(page, pageSize)

	filter := &repository.AuditLogFilter{
		ShareholderID: c.Query("shareholderId"),
		SecurityID:    c.Query("securityId"),
		Result:        model.AuditResult(c.Query("result")),
	}
	filter.StartTime, _ = strconv.ParseInt(c.Query("startTime"), 10, 64)
	filter.EndTime, _ = strconv.ParseInt(c.Query("endTime"), 10, 64)

	logs, total, err := h.audit.List(c.Request.Context(), filter, pagination)
	if err != nil {
		Error(c, errors.Wrap(errors.ErrInternal, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    logs,
		"total":    total,
		"page":     pagination.Page,
		"pageSize": pagination.PageSize,
	})
}

// AuditStats 按结果统计审计日志
// GET /api/risk/audit-logs/stats?since=
func (h *RiskHandler) AuditStats(c *gin.Context) {
	if h.audit == nil {
		Error(c, errors.ErrServiceUnavailable.WithMessage("audit log is disabled"))
		return
	}

	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil || since < 0 {
		Error(c, errors.ErrInvalidRequest.WithDetail("since", "must be a non-negative epoch millisecond"))
		return
	}

	counts, err := h.audit.CountByResult(c.Request.Context(), since)
	if err != nil {
		Error(c, errors.Wrap(errors.ErrInternal, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"since":  since,
		"counts": counts,
	})
}
