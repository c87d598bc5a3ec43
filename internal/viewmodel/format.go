package viewmodel

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

// FormatPrice renders an amount as dollars with two decimals.
func FormatPrice(amount float64) string {
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// FormatQuantity renders a quantity and unit, e.g. "2 bag".
func FormatQuantity(item domain.ShoppingItem) string {
	q := strconv.FormatFloat(item.Qty(), 'f', -1, 64)
	if item.Unit == "" {
		return q
	}
	return q + " " + item.Unit
}

// FormatLogTime renders a log entry's time of day in loc.
func FormatLogTime(entry domain.LogEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return entry.Time().In(loc).Format("15:04:05")
}

// AgentLabel turns an agent key such as "price_comparison" into "Price Comparison".
func AgentLabel(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
