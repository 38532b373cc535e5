package catalog

import (
	"math"
	"strings"

	"github.com/jrsteele09/go-storefront/internal/utils"
)

// BadgeThreshold is the smallest discount, in percent, worth a badge.
const BadgeThreshold = 5.0

type Product struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category,omitempty"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int      `json:"stock"`
	Brand              string   `json:"brand,omitempty"`
	Thumbnail          string   `json:"thumbnail,omitempty"`
	Images             []string `json:"images,omitempty"`
	Favorited          bool     `json:"favorited"`
}

// ProductPage is one page of a listing or search
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// Pager returns the pagination state of the page
func (p *ProductPage) Pager() Pager {
	return Pager{Total: p.Total, Skip: p.Skip, Limit: p.Limit}
}

// DiscountedPrice applies a percentage discount to price
func DiscountedPrice(price, pct float64) float64 {
	return price * (1 - pct/100)
}

func (p Product) DiscountedPrice() float64 {
	return DiscountedPrice(p.Price, p.DiscountPercentage)
}

// HasBadge reports whether the discount is large enough to advertise
func (p Product) HasBadge() bool {
	return p.DiscountPercentage > BadgeThreshold
}

// PriceLabel is the display price, e.g. "$8.99 (was $9.99, -10%)" for a badged product.
func (p Product) PriceLabel() string {
	if !p.HasBadge() {
		return utils.Money(p.Price)
	}
	return utils.Money(p.DiscountedPrice()) + " (was " + utils.Money(p.Price) + ", " + utils.Percent(p.DiscountPercentage) + ")"
}

// Stars renders the rating rounded to the nearest whole star, out of five.
func (p Product) Stars() string {
	n := int(math.Round(p.Rating))
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}
