package models

// ImportRecord is one flat row of a bulk import (CSV, JSON or YAML).
type ImportRecord struct {
	Name            string   `json:"name" yaml:"name" csv:"name" validate:"required,max=1024"`
	StoreSlug       string   `json:"store_slug" yaml:"store_slug" csv:"store_slug" validate:"required"`
	Price           float64  `json:"price" yaml:"price" csv:"price" validate:"gte=0"`
	WasPrice        *float64 `json:"was_price,omitempty" yaml:"was_price,omitempty" csv:"was_price" validate:"omitempty,gte=0"`
	Brand           string   `json:"brand,omitempty" yaml:"brand,omitempty" csv:"brand"`
	Size            string   `json:"size,omitempty" yaml:"size,omitempty" csv:"size"`
	Category        string   `json:"category,omitempty" yaml:"category,omitempty" csv:"category"`
	ImageURL        string   `json:"image_url,omitempty" yaml:"image_url,omitempty" csv:"image_url" validate:"omitempty,url"`
	ProductURL      string   `json:"product_url,omitempty" yaml:"product_url,omitempty" csv:"product_url" validate:"omitempty,url"`
	DiscountPercent *int     `json:"discount_percent,omitempty" yaml:"discount_percent,omitempty" csv:"discount_percent" validate:"omitempty,gte=0,lte=100"`
	Barcode         string   `json:"barcode,omitempty" yaml:"barcode,omitempty" csv:"barcode"`
	UnitPrice       string   `json:"unit_price,omitempty" yaml:"unit_price,omitempty" csv:"unit_price"`
	IsSpecial       bool     `json:"is_special,omitempty" yaml:"is_special,omitempty" csv:"is_special"`
}

// RawItem converts the row into a raw item for the specials path.
func (r ImportRecord) RawItem() RawItem {
	return RawItem{
		Name:            r.Name,
		Price:           r.Price,
		WasPrice:        r.WasPrice,
		DiscountPercent: r.DiscountPercent,
		Brand:           r.Brand,
		Size:            r.Size,
		Category:        r.Category,
		ImageURL:        r.ImageURL,
		ProductURL:      r.ProductURL,
		Source:          "import",
	}
}

// EverydayItem converts the row into an item for the everyday path.
func (r ImportRecord) EverydayItem() EverydayItem {
	return EverydayItem{
		Name:      r.Name,
		StoreSlug: r.StoreSlug,
		Price:     r.Price,
		Brand:     r.Brand,
		Size:      r.Size,
		Barcode:   r.Barcode,
		ImageURL:  r.ImageURL,
		Category:  r.Category,
		UnitPrice: r.UnitPrice,
		IsSpecial: r.IsSpecial,
		Source:    "import",
	}
}
