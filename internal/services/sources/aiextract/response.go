package aiextract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
)

// flexPrice accepts a JSON number, a numeric string or display text like "$3.50"
type flexPrice struct {
	value float64
	set   bool
}

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		p.value, p.set = n, true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := sources.ParsePrice(s); ok {
		p.value, p.set = v, true
	}
	return nil
}

type extractedItem struct {
	Name            string    `json:"name"`
	Price           flexPrice `json:"price"`
	WasPrice        flexPrice `json:"was_price"`
	DiscountPercent flexPrice `json:"discount_percent"`
	Brand           *string   `json:"brand"`
	Size            *string   `json:"size"`
	Category        *string   `json:"category"`
	ImageURL        *string   `json:"image_url"`
	ProductURL      *string   `json:"product_url"`
	ValidFrom       *string   `json:"valid_from"`
	ValidTo         *string   `json:"valid_to"`
}

// ParseResponse decodes a model reply into raw items. The reply may be a
// bare array, an {"items": [...]} object, and may be wrapped in a markdown
// code fence. Entries without a name or a positive price are dropped.
func ParseResponse(response string) ([]models.RawItem, int, error) {
	body := stripCodeFence(response)
	if body == "" {
		return nil, 0, fmt.Errorf("empty model response: %w", models.ErrParse)
	}

	var extracted []extractedItem
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &extracted); err != nil {
			return nil, 0, fmt.Errorf("model response: %v: %w", err, models.ErrParse)
		}
	} else {
		var wrapper struct {
			Items *[]extractedItem `json:"items"`
		}
		if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
			return nil, 0, fmt.Errorf("model response: %v: %w", err, models.ErrParse)
		}
		if wrapper.Items == nil {
			return nil, 0, fmt.Errorf("model response has no items field: %w", models.ErrParse)
		}
		extracted = *wrapper.Items
	}

	items := make([]models.RawItem, 0, len(extracted))
	dropped := 0
	for _, e := range extracted {
		name := strings.TrimSpace(e.Name)
		if name == "" || !e.Price.set || e.Price.value <= 0 {
			dropped++
			continue
		}

		item := models.RawItem{
			Name:       name,
			Price:      e.Price.value,
			Brand:      deref(e.Brand),
			Size:       deref(e.Size),
			Category:   deref(e.Category),
			ImageURL:   deref(e.ImageURL),
			ProductURL: deref(e.ProductURL),
			ValidFrom:  parseDate(e.ValidFrom),
			ValidTo:    parseDate(e.ValidTo),
			Source:     SourceName,
		}
		if e.WasPrice.set && e.WasPrice.value > item.Price {
			was := e.WasPrice.value
			item.WasPrice = &was
		}
		if e.DiscountPercent.set && e.DiscountPercent.value > 0 && e.DiscountPercent.value < 100 {
			pct := int(math.Round(e.DiscountPercent.value))
			item.DiscountPercent = &pct
		}
		items = append(items, item)
	}

	return items, dropped, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if len(v) > len(models.DateLayout) {
		v = v[:len(models.DateLayout)]
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return nil
	}
	return &d
}
