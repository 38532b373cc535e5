package apitest

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-storefront/catalog"
)

type seedProduct struct {
	title    string
	category string
	brand    string
	price    float64
	discount float64
	rating   float64
	stock    int
}

var seedCatalog = []seedProduct{
	{"Essence Mascara Lash Princess", "beauty", "Essence", 9.99, 7.17, 4.94, 5},
	{"Eyeshadow Palette with Mirror", "beauty", "Glamour Beauty", 19.99, 5.5, 3.28, 44},
	{"Powder Canister", "beauty", "Velvet Touch", 14.99, 18.14, 3.82, 59},
	{"Red Lipstick", "beauty", "Chic Cosmetics", 12.99, 19.03, 2.51, 68},
	{"Red Nail Polish", "beauty", "Nail Couture", 8.99, 2.46, 3.91, 71},
	{"Calvin Klein CK One", "fragrances", "Calvin Klein", 49.99, 0.32, 4.85, 17},
	{"Chanel Coco Noir Eau De", "fragrances", "Chanel", 129.99, 18.64, 2.76, 41},
	{"Dior J'adore", "fragrances", "Dior", 89.99, 17.44, 3.31, 91},
	{"Dolce Shine Eau de", "fragrances", "Dolce & Gabbana", 69.99, 11.47, 2.68, 3},
	{"Gucci Bloom Eau de", "fragrances", "Gucci", 79.99, 8.9, 2.69, 93},
	{"Annibale Colombo Bed", "furniture", "Annibale Colombo", 1899.99, 8.09, 4.14, 47},
	{"Annibale Colombo Sofa", "furniture", "Annibale Colombo", 2499.99, 14.4, 3.08, 16},
	{"Bedside Table African Cherry", "furniture", "Furniture Co.", 299.99, 19.09, 4.48, 16},
	{"Knoll Saarinen Executive Conference Chair", "furniture", "Knoll", 499.99, 2.01, 4.11, 47},
	{"Wooden Bathroom Sink With Mirror", "furniture", "Bath Trends", 799.99, 8.8, 3.26, 95},
	{"Apple", "groceries", "", 1.99, 12.62, 4.19, 9},
	{"Beef Steak", "groceries", "", 12.99, 9.61, 4.47, 74},
	{"Cat Food", "groceries", "", 8.99, 9.58, 3.13, 46},
	{"Chicken Meat", "groceries", "", 9.99, 13.7, 3.19, 97},
	{"Cooking Oil", "groceries", "", 4.99, 9.33, 4.8, 10},
	{"Cucumber", "groceries", "", 1.49, 0.16, 4.07, 84},
	{"Dog Food", "groceries", "", 10.99, 10.27, 4.55, 71},
	{"Eggs", "groceries", "", 2.99, 11.05, 2.53, 9},
	{"Fish Steak", "groceries", "", 14.99, 4.23, 3.78, 99},
	{"Green Bell Pepper", "groceries", "", 1.29, 0.16, 3.25, 33},
	{"Green Chili Pepper", "groceries", "", 0.99, 1, 3.66, 3},
	{"Honey Jar", "groceries", "", 6.99, 14.4, 3.97, 34},
	{"Ice Cream", "groceries", "", 5.49, 8.69, 3.39, 27},
	{"Juice", "groceries", "", 3.99, 12.06, 3.94, 50},
	{"Kiwi", "groceries", "", 2.49, 15.22, 4.93, 99},
}

// SeedProducts returns the default catalog, ids 1 to len, in a fixed order.
func SeedProducts() []catalog.Product {
	products := make([]catalog.Product, 0, len(seedCatalog))
	for i, sp := range seedCatalog {
		id := int64(i + 1)
		slug := strings.ReplaceAll(strings.ToLower(sp.title), " ", "-")
		products = append(products, catalog.Product{
			ID:                 id,
			Title:              sp.title,
			Description:        fmt.Sprintf("%s from the %s range.", sp.title, sp.category),
			Category:           sp.category,
			Price:              sp.price,
			DiscountPercentage: sp.discount,
			Rating:             sp.rating,
			Stock:              sp.stock,
			Brand:              sp.brand,
			Thumbnail:          fmt.Sprintf("https://cdn.storefront.test/products/%d/%s/thumbnail.png", id, slug),
			Images:             []string{fmt.Sprintf("https://cdn.storefront.test/products/%d/%s/1.png", id, slug)},
		})
	}
	return products
}
