package cart

// Item is one line of the server cart. Every field is computed by the server.
type Item struct {
	CartItemID         int64   `json:"cartItemId"`
	ProductID          int64   `json:"productId"`
	Title              string  `json:"title"`
	Thumbnail          string  `json:"thumbnail"`
	Price              float64 `json:"price"`
	Quantity           int     `json:"quantity"`
	Total              float64 `json:"total"`
	DiscountedTotal    float64 `json:"discountedTotal"`
	DiscountPercentage float64 `json:"discountPercentage"`
}

// Cart is the server's snapshot of the signed-in user's cart
type Cart struct {
	UserID               int64   `json:"userId"`
	Items                []Item  `json:"items"`
	TotalProducts        int     `json:"totalProducts"`
	TotalQuantity        int     `json:"totalQuantity"`
	TotalPrice           float64 `json:"totalPrice"`
	TotalDiscountedPrice float64 `json:"totalDiscountedPrice"`
}

// Savings is how much the discounts take off the cart total
func (c *Cart) Savings() float64 {
	if c == nil {
		return 0
	}
	return c.TotalPrice - c.TotalDiscountedPrice
}

func (c *Cart) clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp
}

// AddItemRequest is the body of POST /cart/items
type AddItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}
