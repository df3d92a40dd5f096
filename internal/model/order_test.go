package model

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSide(t *testing.T) {
	tests := []struct {
		raw  string
		want Side
	}{
		{"B", SideBuy},
		{"S", SideSell},
		{"BUY", SideBuy},
		{"SELL", SideSell},
		{"b", Side("b")},
		{"X", Side("X")},
		{"", Side("")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeSide(tt.raw)
			assert.Equal(t, tt.want, got)
			// 幂等
			assert.Equal(t, got, NormalizeSide(string(got)))
		})
	}
}

func TestSide_Opposite(t *testing.T) {
	assert.True(t, SideBuy.Opposite(SideSell))
	assert.True(t, SideSell.Opposite(SideBuy))
	assert.False(t, SideBuy.Opposite(SideBuy))
	assert.False(t, SideSell.Opposite(SideSell))
	assert.False(t, Side("X").Opposite(SideBuy))
}

func TestOrder_UnmarshalJSON_NormalizesSide(t *testing.T) {
	var o Order
	err := json.Unmarshal([]byte(`{"clOrderId":"O1","shareholderId":"SH001","market":"XSHG","securityId":"600000","side":"S","qty":100,"price":10.5,"timestamp":1000}`), &o)
	require.NoError(t, err)

	assert.Equal(t, SideSell, o.Side)
	assert.True(t, decimal.RequireFromString("10.5").Equal(o.PriceValue()))
	require.NotNil(t, o.Timestamp)
	assert.Equal(t, int64(1000), *o.Timestamp)
	assert.Empty(t, o.Status)
}

func TestRiskCheckResponse_JSON(t *testing.T) {
	data, err := json.Marshal(NewAllowResponse())
	require.NoError(t, err)
	assert.JSONEq(t, `{"allow":true,"reason":null}`, string(data))

	data, err = json.Marshal(NewRejectResponse())
	require.NoError(t, err)
	assert.JSONEq(t, `{"allow":false,"reason":"SELF_TRADE_DETECTED"}`, string(data))
}

func newTestOrder(id string) *Order {
	price := decimal.RequireFromString("10.00")
	ts := int64(1000)
	return &Order{
		ClOrderID:     id,
		ShareholderID: "SH001",
		Market:        MarketXSHG,
		SecurityID:    "600000",
		Side:          SideBuy,
		Qty:           100,
		Price:         &price,
		Timestamp:     &ts,
	}
}

func TestValidate_Valid(t *testing.T) {
	req := &RiskCheckRequest{
		IncomingOrder:  newTestOrder("O1"),
		ExistingOrders: []*Order{newTestOrder("O2")},
	}
	assert.NoError(t, Validate(req))

	// 空的已有订单列表合法
	req.ExistingOrders = []*Order{}
	assert.NoError(t, Validate(req))

	// 零价格合法, 缺失时间戳合法
	zero := decimal.Zero
	req.IncomingOrder.Price = &zero
	req.IncomingOrder.Timestamp = nil
	req.IncomingOrder.Status = OrderStatusNew
	assert.NoError(t, Validate(req))

	// 标识字段只限制长度, 空串合法
	req.IncomingOrder.ClOrderID = ""
	req.IncomingOrder.ShareholderID = ""
	req.IncomingOrder.SecurityID = ""
	req.ExistingOrders = []*Order{newTestOrder("")}
	req.ExistingOrders[0].ShareholderID = ""
	assert.NoError(t, Validate(req))
}

func TestValidate_Violations(t *testing.T) {
	negative := decimal.RequireFromString("-0.01")

	tests := []struct {
		name   string
		mutate func(req *RiskCheckRequest)
		field  string
	}{
		{"missing incoming", func(r *RiskCheckRequest) { r.IncomingOrder = nil }, "incomingOrder"},
		{"missing existing", func(r *RiskCheckRequest) { r.ExistingOrders = nil }, "existingOrders"},
		{"bad side", func(r *RiskCheckRequest) { r.IncomingOrder.Side = Side("X") }, "side"},
		{"bad market", func(r *RiskCheckRequest) { r.IncomingOrder.Market = Market("NYSE") }, "market"},
		{"zero qty", func(r *RiskCheckRequest) { r.IncomingOrder.Qty = 0 }, "qty"},
		{"negative price", func(r *RiskCheckRequest) { r.IncomingOrder.Price = &negative }, "price"},
		{"missing price", func(r *RiskCheckRequest) { r.IncomingOrder.Price = nil }, "price"},
		{"long clOrderId", func(r *RiskCheckRequest) { r.IncomingOrder.ClOrderID = "12345678901234567" }, "clOrderId"},
		{"long shareholderId", func(r *RiskCheckRequest) { r.IncomingOrder.ShareholderID = "SH0000000001" }, "shareholderId"},
		{"long securityId", func(r *RiskCheckRequest) { r.IncomingOrder.SecurityID = "6000001" }, "securityId"},
		{"bad status", func(r *RiskCheckRequest) { r.IncomingOrder.Status = OrderStatus("DONE") }, "status"},
		{"bad existing side", func(r *RiskCheckRequest) { r.ExistingOrders[0].Side = Side("b") }, "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &RiskCheckRequest{
				IncomingOrder:  newTestOrder("O1"),
				ExistingOrders: []*Order{newTestOrder("O2")},
			}
			tt.mutate(req)

			err := Validate(req)
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw     string
		want    Quantity
		wantErr bool
	}{
		{"100", 100, false},
		{"100.0", 100, false},
		{"1e2", 100, false},
		{"0", 0, false},
		{"null", 0, false},
		{"1.5", 0, true},
		{`"many"`, 0, true},
		{"true", 0, true},
		{"1e30", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tt.raw), &q)
			if tt.wantErr {
				var typeErr *json.UnmarshalTypeError
				assert.ErrorAs(t, err, &typeErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestOrder_UnmarshalJSON_QtyTypeErrorCarriesField(t *testing.T) {
	var req RiskCheckRequest
	err := json.Unmarshal([]byte(`{"incomingOrder":{"qty":2.5},"existingOrders":[]}`), &req)

	var typeErr *json.UnmarshalTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "incomingOrder.qty", typeErr.Field)
}
