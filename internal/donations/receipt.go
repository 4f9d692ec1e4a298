package donations

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount in paise as a rupee string with Indian
// digit grouping, e.g. 125000000 paise -> "₹12,50,000.00".
func FormatINR(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	rupees := paise / 100
	frac := paise % 100
	return inr.Sprintf("%s₹%v.%02d", sign, number.Decimal(rupees), frac)
}
