package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestServiceLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		item     ServiceItem
		expected string
	}{
		{"no discount", ServiceItem{Price: dec("45000"), Quantity: 3}, "45000"},
		{"zero discount", ServiceItem{Price: dec("45000"), Discount: pct("0")}, "45000"},
		{"ten percent", ServiceItem{Price: dec("1000"), Discount: pct("10")}, "900"},
		{"full discount", ServiceItem{Price: dec("1000"), Discount: pct("100")}, "0"},
		{"fractional", ServiceItem{Price: dec("99.99"), Discount: pct("12.5")}, "87.49125"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, dec(tt.expected).Equal(tt.item.LineTotal()),
				"expected %s, got %s", tt.expected, tt.item.LineTotal())
		})
	}
}

func TestPartLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		item     PartItem
		expected string
	}{
		{"no discount", PartItem{Price: dec("25000"), Quantity: 2}, "50000"},
		{"zero discount", PartItem{Price: dec("25000"), Quantity: 2, Discount: pct("0")}, "50000"},
		{"ten percent", PartItem{Price: dec("25000"), Quantity: 2, Discount: pct("10")}, "45000"},
		{"full discount", PartItem{Price: dec("25000"), Quantity: 2, Discount: pct("100")}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, dec(tt.expected).Equal(tt.item.LineTotal()),
				"expected %s, got %s", tt.expected, tt.item.LineTotal())
		})
	}
}

func TestComputeTotal(t *testing.T) {
	services := []ServiceItem{{Price: dec("45000"), Quantity: 1}}
	parts := []PartItem{{Price: dec("25000"), Quantity: 2, Discount: pct("10")}}

	total := ComputeTotal(services, parts)
	assert.True(t, dec("90000").Equal(total), "got %s", total)

	assert.True(t, ComputeTotal(nil, nil).IsZero())
}

func TestSumPayments(t *testing.T) {
	assert.True(t, SumPayments(nil).IsZero())

	payments := []Payment{{Amount: dec("30000")}, {Amount: dec("0.01")}}
	assert.True(t, dec("30000.01").Equal(SumPayments(payments)))
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, OrderStatusChecking.Valid())
	assert.False(t, OrderStatus("cancelled").Valid())

	assert.True(t, ServiceStatusDone.Valid())
	assert.False(t, ServiceStatus("waiting").Valid())

	assert.True(t, PaymentMethodTransfer.Valid())
	assert.False(t, PaymentMethod("crypto").Valid())
}
