package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-storefront/catalog"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := pageParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	products := append([]catalog.Product(nil), s.products...)
	s.mu.Unlock()

	sortProducts(products, r.URL.Query().Get("sortBy"), r.URL.Query().Get("order"))
	s.writePage(w, r, products, limit, skip)
}

func (s *Server) searchProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Required request parameter 'q' is not present", nil)
		return
	}
	limit, skip, ok := pageParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	var matches []catalog.Product
	for _, p := range s.products {
		if matchesQuery(p, q) {
			matches = append(matches, p)
		}
	}
	s.mu.Unlock()

	s.writePage(w, r, matches, limit, skip)
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	p, found := s.product(id)
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	s.markFavorites(r, []*catalog.Product{&p})
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) favoritesHandler(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	s.mu.Lock()
	added := s.favorites[acc.profile.ID]
	ids := make([]int64, 0, len(added))
	for id := range added {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := added[ids[i]], added[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, found := s.product(id); found {
			p.Favorited = true
			products = append(products, p)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, products)
}

func (s *Server) addFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	s.mu.Lock()
	p, found := s.product(id)
	if !found {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if _, dup := s.favorites[acc.profile.ID][id]; dup {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Product already in favorites", nil)
		return
	}
	if s.favorites[acc.profile.ID] == nil {
		s.favorites[acc.profile.ID] = make(map[int64]time.Time)
	}
	s.favorites[acc.profile.ID][id] = s.nowTime()
	s.mu.Unlock()

	p.Favorited = true
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) removeFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, ok := s.account(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	s.mu.Lock()
	_, found := s.favorites[acc.profile.ID][id]
	delete(s.favorites[acc.profile.ID], id)
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Product not found in favorites", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, products []catalog.Product, limit, skip int) {
	total := len(products)
	start := min(skip, total)
	end := min(start+limit, total)

	page := catalog.ProductPage{
		Products: append([]catalog.Product{}, products[start:end]...),
		Total:    total,
		Skip:     skip,
		Limit:    limit,
	}
	ptrs := make([]*catalog.Product, len(page.Products))
	for i := range page.Products {
		ptrs[i] = &page.Products[i]
	}
	s.markFavorites(r, ptrs)
	writeJSON(w, http.StatusOK, page)
}

// markFavorites sets Favorited for a signed-in caller. Anonymous callers see false.
func (s *Server) markFavorites(r *http.Request, products []*catalog.Product) {
	acc, ok := s.account(r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		_, p.Favorited = s.favorites[acc.profile.ID][p.ID]
	}
}

// product must be called with s.mu held
func (s *Server) product(id int64) (catalog.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			p.Images = append([]string(nil), p.Images...)
			return p, true
		}
	}
	return catalog.Product{}, false
}

func sortProducts(products []catalog.Product, sortBy, order string) {
	var less func(a, b catalog.Product) bool
	switch sortBy {
	case "price":
		less = func(a, b catalog.Product) bool { return a.Price < b.Price }
	case "rating":
		less = func(a, b catalog.Product) bool { return a.Rating < b.Rating }
	case "title":
		less = func(a, b catalog.Product) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		return
	}
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

func matchesQuery(p catalog.Product, q string) bool {
	for _, field := range []string{p.Title, p.Description, p.Category, p.Brand} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func pageParams(w http.ResponseWriter, r *http.Request) (limit, skip int, ok bool) {
	limit, skip = defaultLimit, 0
	query := r.URL.Query()
	var err error
	if v := query.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid value for parameter 'limit': "+v, nil)
			return 0, 0, false
		}
	}
	if v := query.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			writeError(w, http.StatusBadRequest, "Invalid value for parameter 'skip': "+v, nil)
			return 0, 0, false
		}
	}
	return min(limit, maxLimit), skip, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value for parameter 'id': "+raw, nil)
		return 0, false
	}
	return id, true
}
