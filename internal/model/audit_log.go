package model

// AuditResult 审计结果
type AuditResult string

const (
	AuditResultAllowed  AuditResult = "ALLOWED"
	AuditResultRejected AuditResult = "REJECTED"
	AuditResultBypassed AuditResult = "BYPASSED"
)

// AuditLog 自成交检查审计日志
type AuditLog struct {
	ID               int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	ClOrderID        string      `gorm:"column:cl_order_id;type:varchar(16);not null" json:"clOrderId"`
	ShareholderID    string      `gorm:"column:shareholder_id;type:varchar(10);not null;index" json:"shareholderId"`
	Market           string      `gorm:"column:market;type:varchar(8);not null" json:"market"`
	SecurityID       string      `gorm:"column:security_id;type:varchar(6);not null" json:"securityId"`
	Side             string      `gorm:"column:side;type:varchar(8);not null" json:"side"`
	Result           AuditResult `gorm:"column:result;type:varchar(20);not null" json:"result"`
	Reason           string      `gorm:"column:reason;type:varchar(64)" json:"reason"`
	MatchedClOrderID string      `gorm:"column:matched_cl_order_id;type:varchar(16)" json:"matchedClOrderId,omitempty"`
	MatchedIndex     int         `gorm:"column:matched_index;type:int;not null;default:-1" json:"matchedIndex"`
	CandidateCount   int         `gorm:"column:candidate_count;type:int;not null" json:"candidateCount"`
	Request          string      `gorm:"column:request;type:text;not null" json:"request"` // JSON 格式的请求内容
	DurationMicros   int64       `gorm:"column:duration_us;type:bigint;not null" json:"durationMicros"`
	CreatedAt        int64       `gorm:"column:created_at;type:bigint;not null;index" json:"createdAt"`
}

// TableName 返回表名
func (AuditLog) TableName() string {
	return "eidos_selftrade_audit_logs"
}

// IsRejected 检查是否拒绝
func (a *AuditLog) IsRejected() bool {
	return a.Result == AuditResultRejected
}
