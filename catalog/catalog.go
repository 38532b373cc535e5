// Package catalog browses products and manages the signed-in user's favorites. It holds no
// state of its own; every call goes to the API.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/notify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	pathProducts  = "/products"
	pathSearch    = "/products/search"
	pathFavorites = "/products/favorites"
)

// SortOption is one choice of listing order. The zero value is the server's default order.
type SortOption struct {
	Label  string
	SortBy string
	Order  string
}

var (
	SortDefault       = SortOption{Label: "Default"}
	SortPriceAsc      = SortOption{Label: "Price: Low → High", SortBy: "price", Order: "asc"}
	SortPriceDesc     = SortOption{Label: "Price: High → Low", SortBy: "price", Order: "desc"}
	SortRatingBest    = SortOption{Label: "Rating: Best", SortBy: "rating", Order: "desc"}
	SortNameAscending = SortOption{Label: "Name: A → Z", SortBy: "title", Order: "asc"}
)

// SortOptions lists the orders offered to the user, default first.
var SortOptions = []SortOption{SortDefault, SortPriceAsc, SortPriceDesc, SortRatingBest, SortNameAscending}

// Query selects one page of the listing.
type Query struct {
	Limit int
	Skip  int
	Sort  SortOption
}

func (q Query) values() url.Values {
	v := pageValues(q.Limit, q.Skip)
	if q.Sort.SortBy != "" {
		v.Set("sortBy", q.Sort.SortBy)
	}
	if q.Sort.Order != "" {
		v.Set("order", q.Sort.Order)
	}
	return v
}

// API is the part of the gateway the catalog needs.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any, options ...gateway.RequestOption) error
	Delete(ctx context.Context, path string, out any) error
}

var _ API = (*gateway.Client)(nil)

// Notifier receives the outcome of favorite toggles.
type Notifier interface {
	Success(message string) notify.Notification
	Error(message string) notify.Notification
}

var _ Notifier = (*notify.Bus)(nil)

type Catalog struct {
	api      API
	notifier Notifier
}

func New(api API, notifier Notifier) (*Catalog, error) {
	if api == nil {
		return nil, errors.New("[catalog.New] api is required")
	}
	if notifier == nil {
		return nil, errors.New("[catalog.New] notifier is required")
	}
	return &Catalog{api: api, notifier: notifier}, nil
}

// List returns one page of products in the requested order.
func (c *Catalog) List(ctx context.Context, q Query) (*ProductPage, error) {
	page := &ProductPage{}
	if err := c.api.Get(ctx, pathProducts, q.values(), page); err != nil {
		return nil, errors.Wrap(err, "[Catalog.List]")
	}
	return page, nil
}

// Search returns one page of products matching text. Blank text is a plain listing.
func (c *Catalog) Search(ctx context.Context, text string, limit, skip int) (*ProductPage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return c.List(ctx, Query{Limit: limit, Skip: skip})
	}

	v := pageValues(limit, skip)
	v.Set("q", text)

	page := &ProductPage{}
	if err := c.api.Get(ctx, pathSearch, v, page); err != nil {
		return nil, errors.Wrap(err, "[Catalog.Search]")
	}
	return page, nil
}

func (c *Catalog) Product(ctx context.Context, id int64) (*Product, error) {
	p := &Product{}
	if err := c.api.Get(ctx, fmt.Sprintf("%s/%d", pathProducts, id), nil, p); err != nil {
		return nil, errors.Wrap(err, "[Catalog.Product]")
	}
	return p, nil
}

// Favorites lists the signed-in user's favorite products.
func (c *Catalog) Favorites(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.api.Get(ctx, pathFavorites, nil, &products); err != nil {
		return nil, errors.Wrap(err, "[Catalog.Favorites]")
	}
	return products, nil
}

// ToggleFavorite adds or removes p from the favorites depending on p.Favorited, and
// returns the resulting flag. Failures are reported through the notifier and leave the
// flag unchanged.
func (c *Catalog) ToggleFavorite(ctx context.Context, p Product) bool {
	path := fmt.Sprintf("%s/%d/favorite", pathProducts, p.ID)

	if p.Favorited {
		if err := c.api.Delete(ctx, path, nil); err != nil {
			c.fail(err)
			return true
		}
		c.notifier.Success("Removed from favorites")
		return false
	}

	if err := c.api.Post(ctx, path, nil, nil); err != nil {
		c.fail(err)
		return false
	}
	c.notifier.Success("Added to favorites")
	return true
}

func (c *Catalog) fail(err error) {
	log.Debug().Err(err).Msg("toggling favorite failed")
	c.notifier.Error(gateway.UserMessage(err, "Failed to update favorites"))
}

func pageValues(limit, skip int) url.Values {
	if limit <= 0 {
		limit = PageSize
	}
	if skip < 0 {
		skip = 0
	}
	return url.Values{
		"limit": {strconv.Itoa(limit)},
		"skip":  {strconv.Itoa(skip)},
	}
}
