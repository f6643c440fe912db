package sources

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	multiBuyPattern = regexp.MustCompile(`(?i)(\d+)\s*for\s*\$\s*(\d+(?:\.\d{1,2})?)`)
	dollarPattern   = regexp.MustCompile(`\$\s*(\d{1,4}(?:,\d{3})*(?:\.\d{1,2})?)`)
	centsPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})\s*c\b`)
	plainPattern    = regexp.MustCompile(`\b(\d{1,4}(?:\.\d{1,2})?)\b`)
)

// ParsePrice reads a shelf price from display text such as "$4.50",
// "2 for $5", "90c" or "4.50 each". Multi-buy offers yield the unit price.
func ParsePrice(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	if m := multiBuyPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total, err := strconv.ParseFloat(m[2], 64)
		if err == nil && n > 0 {
			return math.Round(total/float64(n)*100) / 100, true
		}
	}

	if m := dollarPattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			return v, true
		}
	}

	if m := centsPattern.FindStringSubmatch(text); m != nil {
		c, err := strconv.Atoi(m[1])
		if err == nil {
			return float64(c) / 100, true
		}
	}

	if m := plainPattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v, true
		}
	}

	return 0, false
}
