package taxengine

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/simaogato/gstk-backend/internal/domain"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale groups digits the Indian way (1,18,000.00)
var DefaultLocale = language.MustParse("en-IN")

// Display holds presentation strings for a breakdown.
// Plain values are fixed to 2 decimal places; Formatted values carry
// the currency symbol and locale digit grouping.
type Display struct {
	Base      string
	Tax       string
	Total     string
	SplitA    string
	SplitB    string
	SplitRate string

	FormattedBase  string
	FormattedTax   string
	FormattedTotal string
}

// FormatCurrency renders an INR amount with two fraction digits.
// Digits come from the decimal itself, so large amounts stay exact.
func FormatCurrency(amount decimal.Decimal, locale language.Tag) string {
	f := formatFor(locale)

	fixed := amount.StringFixed(2)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	p := message.NewPrinter(locale)
	return sign + p.Sprint(currency.Symbol(currency.INR)) + f.integer(whole) + f.decimal + f.localize(frac)
}

// numberFormat is the digit layout of one locale
type numberFormat struct {
	digits    [10]rune
	group     string
	decimal   string
	primary   int
	secondary int
}

// formatSample holds every digit once, enough integer digits to show both
// grouping sizes, and one fraction digit
const formatSample = 1234567890.5

var formats sync.Map // locale string -> numberFormat

func formatFor(locale language.Tag) numberFormat {
	key := locale.String()
	if f, ok := formats.Load(key); ok {
		return f.(numberFormat)
	}
	sample := message.NewPrinter(locale).Sprint(number.Decimal(formatSample, number.Scale(1)))
	f := parseFormat(sample)
	formats.Store(key, f)
	return f
}

// parseFormat reads separators, grouping sizes and digit glyphs from a
// printed formatSample
func parseFormat(sample string) numberFormat {
	f := numberFormat{
		digits:    [10]rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'},
		group:     ",",
		decimal:   ".",
		primary:   3,
		secondary: 3,
	}

	var (
		glyphs []rune
		runs   []int
		seps   []string
		sep    strings.Builder
	)
	run := 0
	for _, r := range sample {
		if unicode.IsDigit(r) {
			if sep.Len() > 0 {
				seps = append(seps, sep.String())
				sep.Reset()
			}
			glyphs = append(glyphs, r)
			run++
			continue
		}
		if run > 0 {
			runs = append(runs, run)
			run = 0
		}
		if len(runs) > 0 {
			sep.WriteRune(r)
		}
	}
	if run > 0 {
		runs = append(runs, run)
	}

	// 1..9, 0, then the fraction 5
	if len(glyphs) == 11 {
		for i := 0; i < 9; i++ {
			f.digits[i+1] = glyphs[i]
		}
		f.digits[0] = glyphs[9]
	}
	if len(runs) < 2 || len(seps) != len(runs)-1 {
		return f
	}

	f.decimal = seps[len(seps)-1]
	groups := runs[:len(runs)-1]
	switch {
	case len(groups) == 1:
		f.primary, f.secondary = 0, 0
	case len(groups) == 2:
		f.group = seps[0]
		f.primary = groups[1]
		f.secondary = groups[1]
	default:
		f.group = seps[0]
		f.primary = groups[len(groups)-1]
		f.secondary = groups[len(groups)-2]
	}
	return f
}

// integer groups ASCII digits from the right, primary size first
func (f numberFormat) integer(digits string) string {
	var chunks []string
	size := f.primary
	for size > 0 && len(digits) > size {
		chunks = append(chunks, digits[len(digits)-size:])
		digits = digits[:len(digits)-size]
		size = f.secondary
	}
	chunks = append(chunks, digits)

	var b strings.Builder
	for i := len(chunks) - 1; i >= 0; i-- {
		b.WriteString(f.localize(chunks[i]))
		if i > 0 {
			b.WriteString(f.group)
		}
	}
	return b.String()
}

func (f numberFormat) localize(digits string) string {
	b := make([]byte, 0, len(digits))
	for i := 0; i < len(digits); i++ {
		b = utf8.AppendRune(b, f.digits[digits[i]-'0'])
	}
	return string(b)
}

// Render produces the display strings for a breakdown
func Render(b domain.TaxBreakdown, rate decimal.Decimal, locale language.Tag) Display {
	r := b.Rounded()
	return Display{
		Base:      r.Base.StringFixed(2),
		Tax:       r.Tax.StringFixed(2),
		Total:     r.Total.StringFixed(2),
		SplitA:    r.SplitA.StringFixed(2),
		SplitB:    r.SplitB.StringFixed(2),
		SplitRate: SplitRate(rate).StringFixed(1),

		FormattedBase:  FormatCurrency(r.Base, locale),
		FormattedTax:   FormatCurrency(r.Tax, locale),
		FormattedTotal: FormatCurrency(r.Total, locale),
	}
}
