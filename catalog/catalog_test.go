package catalog_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/apitest"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/gateway"
	"github.com/jrsteele09/go-storefront/navigation"
	"github.com/jrsteele09/go-storefront/notify"
	faketokenstore "github.com/jrsteele09/go-storefront/tokenstore/repofake"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	api     *apitest.Server
	bus     *notify.Bus
	catalog *catalog.Catalog
}

// setupTestFixture signs in as jdoe when signedIn is set, otherwise browses anonymously.
func setupTestFixture(t *testing.T, signedIn bool) *testFixture {
	t.Helper()

	api, baseURL := apitest.NewTestServer(t)
	_, err := api.AddUser(users.RegisterRequest{
		Username: "jdoe", Email: "jdoe@example.com", Password: "secret1", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)

	tokens := faketokenstore.NewFakeTokenStore("")
	if signedIn {
		token, err := api.AccessToken("jdoe")
		require.NoError(t, err)
		require.NoError(t, tokens.Set(context.Background(), token))
	}

	client, err := gateway.New(baseURL, tokens, navigation.NewRouter(navigation.ViewProducts))
	require.NoError(t, err)

	bus := notify.New(notify.WithTTL(time.Hour))
	t.Cleanup(bus.Close)

	c, err := catalog.New(client, bus)
	require.NoError(t, err)
	return &testFixture{api: api, bus: bus, catalog: c}
}

func (f *testFixture) messages() []string {
	var msgs []string
	for _, n := range f.bus.Active() {
		msgs = append(msgs, string(n.Kind)+": "+n.Message)
	}
	return msgs
}

func TestList_PagesAndSorts(t *testing.T) {
	f := setupTestFixture(t, false)
	ctx := context.Background()

	page, err := f.catalog.List(ctx, catalog.Query{})
	require.NoError(t, err)
	require.Len(t, page.Products, catalog.PageSize, "client asks for its own page size")
	require.Equal(t, 30, page.Total)

	pager := page.Pager()
	require.Equal(t, 3, pager.TotalPages())
	require.Equal(t, 1, pager.CurrentPage())
	require.False(t, pager.HasPrev())
	require.True(t, pager.HasNext())

	last, err := f.catalog.List(ctx, catalog.Query{Skip: 24})
	require.NoError(t, err)
	require.Len(t, last.Products, 6)
	require.False(t, last.Pager().HasNext())

	sorted, err := f.catalog.List(ctx, catalog.Query{Limit: 30, Sort: catalog.SortPriceAsc})
	require.NoError(t, err)
	for i := 1; i < len(sorted.Products); i++ {
		require.LessOrEqual(t, sorted.Products[i-1].Price, sorted.Products[i].Price)
	}

	best, err := f.catalog.List(ctx, catalog.Query{Limit: 1, Sort: catalog.SortRatingBest})
	require.NoError(t, err)
	require.Equal(t, "Essence Mascara Lash Princess", best.Products[0].Title)
}

func TestSearch(t *testing.T) {
	f := setupTestFixture(t, false)
	ctx := context.Background()

	page, err := f.catalog.Search(ctx, "  food ", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)

	all, err := f.catalog.Search(ctx, "   ", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 30, all.Total, "blank search lists everything")
	require.Equal(t, 1, f.api.RequestCount(http.MethodGet, apitest.APIRoot+apitest.RouteSearch))
}

func TestProduct(t *testing.T) {
	f := setupTestFixture(t, false)

	p, err := f.catalog.Product(context.Background(), 6)
	require.NoError(t, err)
	require.Equal(t, "Calvin Klein CK One", p.Title)
	require.False(t, p.HasBadge())

	_, err = f.catalog.Product(context.Background(), 404)
	require.Error(t, err)
	require.Equal(t, "Product not found", gateway.UserMessage(err, ""))
}

func TestToggleFavorite(t *testing.T) {
	f := setupTestFixture(t, true)
	ctx := context.Background()

	p, err := f.catalog.Product(ctx, 4)
	require.NoError(t, err)
	require.False(t, p.Favorited)

	require.True(t, f.catalog.ToggleFavorite(ctx, *p))
	p.Favorited = true

	favorites, err := f.catalog.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, int64(4), favorites[0].ID)
	assert.True(t, favorites[0].Favorited)

	require.False(t, f.catalog.ToggleFavorite(ctx, *p))
	favorites, err = f.catalog.Favorites(ctx)
	require.NoError(t, err)
	require.Empty(t, favorites)

	require.Equal(t, []string{"success: Added to favorites", "success: Removed from favorites"}, f.messages())
}

func TestToggleFavorite_Failures(t *testing.T) {
	f := setupTestFixture(t, true)
	ctx := context.Background()

	// Stale flag: the server has no such favorite
	stale := catalog.Product{ID: 3, Favorited: true}
	require.True(t, f.catalog.ToggleFavorite(ctx, stale), "flag unchanged on failure")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.False(t, f.catalog.ToggleFavorite(cancelled, catalog.Product{ID: 3}))

	require.Equal(t, []string{
		"error: Product not found in favorites",
		"error: Failed to update favorites",
	}, f.messages())
}

func TestFavorites_RequiresSignIn(t *testing.T) {
	f := setupTestFixture(t, false)

	_, err := f.catalog.Favorites(context.Background())
	require.Error(t, err)
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.Unauthorized())
}
