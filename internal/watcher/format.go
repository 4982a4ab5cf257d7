package watcher

import (
	"fmt"
	"strings"

	"crosswatch/internal/model"
	"crosswatch/internal/notification"
)

// alertFor condenses every fresh cross for one token into a single alert.
// One token, one message per cycle, however many bars crossed. Price and
// EMA values are the newest in the series, not the crossing bar's.
func alertFor(tok model.TokenConfig, fastW, slowW int, offsets []int, price, fastEMA, slowEMA float64) notification.Alert {
	tags := make([]string, 0, len(offsets))
	for _, off := range offsets {
		tags = append(tags, fmt.Sprintf("EMA%d/%d cross@%s[%d]", fastW, slowW, tok.Bar, off))
	}

	msg := fmt.Sprintf("price: %.6f\nEMA%d: %.6f | EMA%d: %.6f\nbar: %s\nsignals: %s",
		price, fastW, fastEMA, slowW, slowEMA, tok.Bar, strings.Join(tags, ", "))

	return notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Golden cross: " + tok.Name,
		Message: msg,
	}
}
