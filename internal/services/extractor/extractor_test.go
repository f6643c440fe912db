package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBrand_KnownBrands(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Heinz Ketchup Tomato Sauce 500mL", "Heinz"},
		{"John West Tuna In Tomato Sauce 95g", "John West"},
		{"John West Tuna", "John West"},
		{"Woolworths Full Cream Milk 2L", "Woolworths"},
		{"ASIA SPECIALITIES Tikka Masala Sauce 500g", "Asia Specialities"},
		{"Heinz500ml Tomato Soup", "Heinz"},
		{"Heinz Baby Custard 120g", "Heinz Baby"},
		{"heinz beanz 300g", "Heinz"},
		{"Red Rock Deli Chips 165g", "Red Rock Deli"},
		{"V Energy Drink 500mL", "V"},
		{"Coca-Cola Classic 1.25L", "Coca-Cola"},
		{"Masterfoods Tomato Sauce 500mL", "Masterfoods"},
		{"MASTERFOODS BBQ Sauce", "Masterfoods"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBrand(tt.name))
		})
	}
}

func TestExtractBrand_EveryKnownBrandWithSuffix(t *testing.T) {
	for _, b := range KnownBrands() {
		got := ExtractBrand(b + " Product Name 500g")
		if got != b {
			t.Errorf("ExtractBrand(%q) = %q, want %q", b+" Product Name 500g", got, b)
		}
	}
}

func TestExtractBrand_LongestMatchWins(t *testing.T) {
	assert.Equal(t, "John West", ExtractBrand("John West Tuna"))
	assert.NotEqual(t, "John", ExtractBrand("John West Tuna"))
	assert.Equal(t, "Golden Circle", ExtractBrand("Golden Circle Pineapple Juice 1L"))
	assert.Equal(t, "Golden", ExtractBrand("Golden Crumpet Rounds 6 Pack"))
}

func TestExtractBrand_Heuristic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"capitalised first word", "Zooper Dooper Icy Poles 24 Pack", "Zooper Dooper"},
		{"single capitalised word", "Zooper dooper icy poles", "Zooper"},
		{"common noun not joined", "Acme Sauce 500mL", "Acme"},
		{"stop word skipped", "Fresh Tassal Salmon Fillets", "Tassal Salmon"},
		{"stop word lower case", "the Smokehouse bacon", "Smokehouse"},
		{"digit first word retries second", "2x Lamington Slices", "Lamington Slices"},
		{"lower case rejected", "bananas cavendish", ""},
		{"single stop word", "Organic", ""},
		{"single digit word", "500g", ""},
		{"too short", "X factor", ""},
		{"two word too long", "Supercalifragilistic Expialidocious Treats", "Supercalifragilistic"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBrand(tt.in))
		})
	}
}

func TestExtractSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Heinz Ketchup 500mL", "500mL"},
		{"Milk 2 Litres", "2 Litres"},
		{"Full Cream Milk 2L", "2L"},
		{"Coca-Cola Classic 1.25L", "1.25L"},
		{"Pepsi Max 6 x 375ml Cans", "6 x 375ml"},
		{"Yoplait Yoghurt 4x100g", "4x100g"},
		{"John West Tuna 95g", "95g"},
		{"Beef Mince 1kg", "1kg"},
		{"Huggies Nappies 54 Pack", "54 Pack"},
		{"Coke Zero 10pk", "10pk"},
		{"Peanut Butter 16oz", "16oz"},
		{"Bananas Cavendish", ""},
		{"Red Bull Energy Drink", ""},
		{"Large Free Range Eggs", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSize(tt.in))
		})
	}
}

func TestExtract_IsDeterministic(t *testing.T) {
	name := "Arnott's Tim Tam Original 200g"
	b1, s1 := Extract(name)
	b2, s2 := Extract(name)
	assert.Equal(t, b1, b2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, "Arnott's", b1)
	assert.Equal(t, "200g", s1)
}
