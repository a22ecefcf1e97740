package payouts

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dreamboard/internal/domain"
)

var printer = message.NewPrinter(language.MustParse("en-ZA"))

// FormatRand renders cents as a rand amount for display.
func FormatRand(cents int64) string {
	return printer.Sprint(currency.Symbol(currency.ZAR.Amount(float64(cents) / 100)))
}

// Describe is the human-readable line sent to payout channels.
func Describe(p domain.Payout, c domain.Campaign) string {
	name := strings.TrimSpace(c.ChildName)
	if name == "" {
		name = "Dream Board"
	}
	switch p.Type {
	case domain.PayoutCharityDonation:
		return printer.Sprintf("%s charity donation from %s's Dream Board", FormatRand(p.NetCents), name)
	case domain.PayoutCardTopUp:
		return printer.Sprintf("%s gift top-up: %s", name, FormatRand(p.NetCents))
	}
	gift := strings.TrimSpace(c.GiftName)
	if gift == "" {
		gift = "gift"
	}
	return printer.Sprintf("%s for %s's %s", FormatRand(p.NetCents), name, gift)
}
