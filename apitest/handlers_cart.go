package apitest

import (
	"math"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-storefront/cart"
)

func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	s.mu.Lock()
	c := s.buildCart(acc.profile.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req cart.AddItemRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Malformed request body", nil)
		return
	}
	fieldErrors := map[string]string{}
	if req.ProductID == 0 {
		fieldErrors["productId"] = "Product ID is required"
	}
	if req.Quantity < 1 {
		fieldErrors["quantity"] = "Quantity must be at least 1"
	}
	if len(fieldErrors) > 0 {
		validationError(w, fieldErrors)
		return
	}
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	userID := acc.profile.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.product(req.ProductID); !found {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	lines := s.carts[userID]
	merged := false
	for i := range lines {
		if lines[i].ProductID == req.ProductID {
			lines[i].Quantity += req.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.nextItemID++
		lines = append(lines, cart.Item{CartItemID: s.nextItemID, ProductID: req.ProductID, Quantity: req.Quantity})
	}
	s.carts[userID] = lines

	writeJSON(w, http.StatusCreated, s.buildCart(userID))
}

func (s *Server) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	s.changeLine(w, r, 0)
}

func (s *Server) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("quantity")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Required request parameter 'quantity' is not present", nil)
		return
	}
	quantity, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value for parameter 'quantity': "+raw, nil)
		return
	}
	s.changeLine(w, r, quantity)
}

// changeLine sets the quantity of the line named in the path. Zero or less removes it.
func (s *Server) changeLine(w http.ResponseWriter, r *http.Request, quantity int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	userID := acc.profile.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	idx := -1
	for i := range lines {
		if lines[i].CartItemID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Cart item not found", nil)
		return
	}

	if quantity <= 0 {
		s.carts[userID] = append(lines[:idx], lines[idx+1:]...)
	} else {
		lines[idx].Quantity = quantity
	}
	writeJSON(w, http.StatusOK, s.buildCart(userID))
}

func (s *Server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	s.mu.Lock()
	delete(s.carts, acc.profile.ID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// buildCart prices the user's lines from the current catalog. It must be called with s.mu held.
func (s *Server) buildCart(userID int64) cart.Cart {
	c := cart.Cart{UserID: userID, Items: []cart.Item{}}
	var totalPrice, totalDiscounted float64

	for _, line := range s.carts[userID] {
		p, found := s.product(line.ProductID)
		if !found {
			continue
		}
		total := p.Price * float64(line.Quantity)
		discounted := total * (1 - p.DiscountPercentage/100)

		c.Items = append(c.Items, cart.Item{
			CartItemID:         line.CartItemID,
			ProductID:          p.ID,
			Title:              p.Title,
			Thumbnail:          p.Thumbnail,
			Price:              p.Price,
			Quantity:           line.Quantity,
			Total:              round2(total),
			DiscountedTotal:    round2(discounted),
			DiscountPercentage: p.DiscountPercentage,
		})
		totalPrice += round2(total)
		totalDiscounted += round2(discounted)
		c.TotalQuantity += line.Quantity
	}

	c.TotalProducts = len(c.Items)
	c.TotalPrice = round2(totalPrice)
	c.TotalDiscountedPrice = round2(totalDiscounted)
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
