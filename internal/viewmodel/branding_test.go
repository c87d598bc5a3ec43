package viewmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

func TestBrandFor(t *testing.T) {
	assert.Equal(t, "#FF9900", BrandColor("Amazon Fresh"))
	assert.Equal(t, "#FFF3E0", BrandLightColor("AMAZON"))
	assert.Equal(t, "#0046BE", BrandColor("Best Buy"))
	assert.Equal(t, DefaultBrand, BrandFor("Corner Shop"))
	assert.Equal(t, DefaultBrand, BrandFor(""))
}

func TestBrandFirstMatchWins(t *testing.T) {
	// "amazon" is listed before "target".
	assert.Equal(t, BrandColor("Amazon"), BrandColor("Target via Amazon"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$1,599.99", FormatPrice(1599.99))
	assert.Equal(t, "$0.50", FormatPrice(0.5))
	assert.Equal(t, "-$3.00", FormatPrice(-3))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "2 bag", FormatQuantity(domain.ShoppingItem{Quantity: 2, Unit: "bag"}))
	assert.Equal(t, "1", FormatQuantity(domain.ShoppingItem{}))
	assert.Equal(t, "2.5 kg", FormatQuantity(domain.ShoppingItem{Quantity: 2.5, Unit: "kg"}))
}

func TestFormatLogTime(t *testing.T) {
	entry := domain.LogEntry{Timestamp: float64(time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC).Unix())}
	assert.Equal(t, "14:05:09", FormatLogTime(entry, time.UTC))
}

func TestAgentLabel(t *testing.T) {
	assert.Equal(t, "Price Comparison", AgentLabel("price_comparison"))
	assert.Equal(t, "Browser", AgentLabel("browser"))
}
