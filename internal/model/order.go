// Package model 定义自成交风控的订单与请求响应模型
package model

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// NormalizeSide 兼容 B/S 简写, 其余取值原样保留
func NormalizeSide(raw string) Side {
	switch raw {
	case "B":
		return SideBuy
	case "S":
		return SideSell
	default:
		return Side(raw)
	}
}

// UnmarshalJSON 解码时归一化买卖方向
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NormalizeSide(raw)
	return nil
}

// IsBuy 是否买单
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Opposite 是否与另一方向相反
func (s Side) Opposite(other Side) bool {
	return (s == SideBuy && other == SideSell) || (s == SideSell && other == SideBuy)
}

// Market 交易市场
type Market string

const (
	MarketXSHG Market = "XSHG" // 上交所
	MarketXSHE Market = "XSHE" // 深交所
	MarketBJSE Market = "BJSE" // 北交所
)

// OrderStatus 订单状态, 仅作信息用途
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusValid      OrderStatus = "VALID"
	OrderStatusRiskReject OrderStatus = "RISK_REJECT"
	OrderStatusMatching   OrderStatus = "MATCHING"
	OrderStatusPartFilled OrderStatus = "PART_FILLED"
	OrderStatusFullFilled OrderStatus = "FULL_FILLED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRejected   OrderStatus = "REJECTED"
)

// Quantity 委托数量, 接受整数值的浮点写法 (如 100.0)
type Quantity int64

// UnmarshalJSON 解码数量, 非整数或非数值时返回类型错误
func (q *Quantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil && n != "" {
		if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			*q = Quantity(v)
			return nil
		}
		if d, err := decimal.NewFromString(n.String()); err == nil && d.IsInteger() && d.BigInt().IsInt64() {
			*q = Quantity(d.IntPart())
			return nil
		}
	}

	return &json.UnmarshalTypeError{
		Value: "number " + string(data),
		Type:  reflect.TypeOf(Quantity(0)),
	}
}

// ReasonSelfTradeDetected 自成交拒绝原因
const ReasonSelfTradeDetected = "SELF_TRADE_DETECTED"

// Order 订单
type Order struct {
	ClOrderID     string           `json:"clOrderId" binding:"max=16"`
	ShareholderID string           `json:"shareholderId" binding:"max=10"`
	Market        Market           `json:"market" binding:"required,oneof=XSHG XSHE BJSE"`
	SecurityID    string           `json:"securityId" binding:"max=6"`
	Side          Side             `json:"side" binding:"required,oneof=BUY SELL"`
	Qty           Quantity         `json:"qty" binding:"required,min=1"`
	Price         *decimal.Decimal `json:"price" binding:"required,gte=0"`
	Status        OrderStatus      `json:"status,omitempty" binding:"omitempty,oneof=NEW VALID RISK_REJECT MATCHING PART_FILLED FULL_FILLED CANCELLED REJECTED"`
	Timestamp     *int64           `json:"timestamp,omitempty"`
}

// PriceValue 返回价格, 未设置时为零
func (o *Order) PriceValue() decimal.Decimal {
	if o.Price == nil {
		return decimal.Zero
	}
	return *o.Price
}

// RiskCheckRequest 风控检查请求
type RiskCheckRequest struct {
	IncomingOrder  *Order   `json:"incomingOrder" binding:"required"`
	ExistingOrders []*Order `json:"existingOrders" binding:"required,dive,required"`
}

// RiskCheckResponse 风控检查响应
type RiskCheckResponse struct {
	Allow  bool    `json:"allow"`
	Reason *string `json:"reason"`
}

// NewAllowResponse 放行响应, reason 为 null
func NewAllowResponse() *RiskCheckResponse {
	return &RiskCheckResponse{Allow: true}
}

// NewRejectResponse 自成交拒绝响应
func NewRejectResponse() *RiskCheckResponse {
	reason := ReasonSelfTradeDetected
	return &RiskCheckResponse{Allow: false, Reason: &reason}
}

// RegisterValidation 注册 decimal 类型转换与 JSON 字段命名
func RegisterValidation(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterTagNameFunc(jsonFieldName)
}

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidation(v)
	return v
}

// Validate 按 binding 标签校验请求, 供非 HTTP 调用方使用
func Validate(req *RiskCheckRequest) error {
	return defaultValidator.Struct(req)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
