package fit

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators, e.g. 12,345.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatDistance renders meters as kilometres with two decimals.
func FormatDistance(meters float64) string {
	return printer.Sprintf("%.2f km", meters/1000)
}

func FormatMetric(v *float64, decimals int) string {
	if v == nil {
		return "N/A"
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), *v)
}
