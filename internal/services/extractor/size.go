package extractor

import (
	"regexp"
	"strings"
)

// sizePatterns are tried in order; the first match wins. Multi-pack comes
// first so "6 x 375ml" is returned whole rather than as "375ml". Longer unit
// spellings precede shorter ones so "2 Litres" is not cut to "2 L".
var sizePatterns = []*regexp.Regexp{
	// multi-pack, e.g. "6 x 375ml", "4x100g"
	regexp.MustCompile(`(?i)\b(\d+\s*x\s*\d+(?:\.\d+)?\s*(?:ml|kg|g|l)?)\b`),
	// volume
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:litres|litre|liters|liter|ml|l))\b`),
	// mass
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:kg|g))\b`),
	// pack count
	regexp.MustCompile(`(?i)(\d+\s*(?:pack|pk))\b`),
	// imperial
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*oz)\b`),
}

// ExtractSize returns the first size token found in a product name, with its
// original casing, or "" when no pattern matches.
func ExtractSize(name string) string {
	if name == "" {
		return ""
	}
	for _, re := range sizePatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Extract returns brand and size together.
func Extract(name string) (brand, size string) {
	return ExtractBrand(name), ExtractSize(name)
}
