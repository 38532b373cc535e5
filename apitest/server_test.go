package apitest_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront/apitest"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type testFixture struct {
	server  *apitest.Server
	baseURL string
	token   string
}

type errorBody struct {
	Status      int               `json:"status"`
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	server, baseURL := apitest.NewTestServer(t, apitest.WithNowTime(func() time.Time { return fixedNow }))
	_, err := server.AddUser(users.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret1", FirstName: "Alice", LastName: "Smith",
	})
	require.NoError(t, err)
	token, err := server.AccessToken("alice")
	require.NoError(t, err)

	return &testFixture{server: server, baseURL: baseURL, token: token}
}

// call sends a JSON request and decodes a 2xx body into out or an error body into the
// returned errorBody.
func (f *testFixture) call(t *testing.T, method, path, token string, body, out any, headers ...string) (int, errorBody) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var eb errorBody
	if resp.StatusCode >= 300 {
		require.NoError(t, json.Unmarshal(raw, &eb), string(raw))
		return resp.StatusCode, eb
	}
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp.StatusCode, eb
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)

	var resp session.AuthResponse
	status, _ := f.call(t, http.MethodPost, apitest.RouteRegister, "", users.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "secret1", FirstName: "Bob", LastName: "Jones",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, "Registration successful", resp.Message)

	var me users.Profile
	status, _ = f.call(t, http.MethodGet, apitest.RouteMe, resp.AccessToken, nil, &me)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "bob", me.Username)
	require.Equal(t, int64(2), me.ID)
	require.Equal(t, "2025-03-14T09:26:53", me.CreatedAt)
}

func TestRegister_Failures(t *testing.T) {
	f := setupTestFixture(t)

	status, eb := f.call(t, http.MethodPost, apitest.RouteRegister, "", users.RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "secret1", FirstName: "A", LastName: "B",
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Username already exists: alice", eb.Message)

	status, eb = f.call(t, http.MethodPost, apitest.RouteRegister, "", users.RegisterRequest{
		Username: "carol", Email: "ALICE@example.com", Password: "secret1", FirstName: "C", LastName: "D",
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Email already exists: ALICE@example.com", eb.Message)

	status, eb = f.call(t, http.MethodPost, apitest.RouteRegister, "", users.RegisterRequest{
		Username: "ab", Email: "nope", Password: "123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Validation Failed", eb.Error)
	require.Equal(t, "One or more fields are invalid", eb.Message)
	assert.Contains(t, eb.FieldErrors, "username")
	assert.Contains(t, eb.FieldErrors, "email")
	assert.Contains(t, eb.FieldErrors, "password")
	assert.Contains(t, eb.FieldErrors, "firstName")
	assert.Contains(t, eb.FieldErrors, "lastName")
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	var resp session.AuthResponse
	status, _ := f.call(t, http.MethodPost, apitest.RouteLogin, "", users.Credentials{Username: "alice", Password: "secret1"}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.AccessToken)
	require.False(t, resp.TwoFactorRequired)
	require.Equal(t, "Login successful", resp.Message)

	status, eb := f.call(t, http.MethodPost, apitest.RouteLogin, "", users.Credentials{Username: "alice", Password: "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid username or password", eb.Message)

	status, eb = f.call(t, http.MethodPost, apitest.RouteLogin, "", users.Credentials{Username: "nobody", Password: "secret1"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid username or password", eb.Message)
}

func TestLogin_TwoFactor(t *testing.T) {
	f := setupTestFixture(t)
	secret, err := f.server.EnableTwoFactor("alice")
	require.NoError(t, err)

	var challenge session.AuthResponse
	status, _ := f.call(t, http.MethodPost, apitest.RouteLogin, "", users.Credentials{Username: "alice", Password: "secret1"}, &challenge)
	require.Equal(t, http.StatusOK, status)
	require.True(t, challenge.TwoFactorRequired)
	require.Empty(t, challenge.AccessToken)
	require.NotEmpty(t, challenge.TwoFactorToken)

	// A challenge token is not a bearer token
	status, _ = f.call(t, http.MethodGet, apitest.RouteMe, challenge.TwoFactorToken, nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, eb := f.call(t, http.MethodPost, apitest.RouteVerify2FA, "", map[string]string{"code": "000000"}, nil,
		"X-2FA-Token", challenge.TwoFactorToken)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid two-factor authentication code", eb.Message)

	var verified session.AuthResponse
	status, _ = f.call(t, http.MethodPost, apitest.RouteVerify2FA, "", map[string]string{"code": f.server.CurrentCode(secret)}, &verified,
		"X-2FA-Token", challenge.TwoFactorToken)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, verified.AccessToken)
	require.Equal(t, "Two-factor authentication successful", verified.Message)

	// The code may also ride along with the credentials
	var direct session.AuthResponse
	status, _ = f.call(t, http.MethodPost, apitest.RouteLogin, "",
		users.Credentials{Username: "alice", Password: "secret1", TotpCode: f.server.CurrentCode(secret)}, &direct)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, direct.AccessToken)
}

func TestVerify_BadChallenge(t *testing.T) {
	f := setupTestFixture(t)

	status, _ := f.call(t, http.MethodPost, apitest.RouteVerify2FA, "", map[string]string{"code": "123456"}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	// A bearer token is not a challenge token
	status, _ = f.call(t, http.MethodPost, apitest.RouteVerify2FA, "", map[string]string{"code": "123456"}, nil, "X-2FA-Token", f.token)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestTwoFactorLifecycle(t *testing.T) {
	f := setupTestFixture(t)

	status, eb := f.call(t, http.MethodPost, apitest.RouteConfirm2FA, f.token, map[string]string{"code": "123456"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Two-factor setup not initiated. Call setup endpoint first.", eb.Message)

	var setup struct {
		Secret    string `json:"secret"`
		QRCodeURI string `json:"qrCodeUri"`
		Message   string `json:"message"`
	}
	status, _ = f.call(t, http.MethodPost, apitest.RouteSetup2FA, f.token, nil, &setup)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, setup.Secret, 32)
	require.True(t, strings.HasPrefix(setup.QRCodeURI, "otpauth://totp/Storefront:alice?"))
	uri, err := url.Parse(setup.QRCodeURI)
	require.NoError(t, err)
	require.Equal(t, setup.Secret, uri.Query().Get("secret"))

	status, eb = f.call(t, http.MethodPost, apitest.RouteConfirm2FA, f.token, map[string]string{"code": "000000"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid code. Please try again.", eb.Message)

	var confirmed session.AuthResponse
	status, _ = f.call(t, http.MethodPost, apitest.RouteConfirm2FA, f.token, map[string]string{"code": f.server.CurrentCode(setup.Secret)}, &confirmed)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, confirmed.AccessToken)

	var me users.Profile
	f.call(t, http.MethodGet, apitest.RouteMe, f.token, nil, &me)
	require.True(t, me.TwoFactorEnabled)

	status, _ = f.call(t, http.MethodDelete, apitest.RouteDisable2FA, f.token, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	f.call(t, http.MethodGet, apitest.RouteMe, f.token, nil, &me)
	require.False(t, me.TwoFactorEnabled)
}

func TestRequireAuth(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{apitest.RouteMe, apitest.RouteCart, apitest.RouteFavorites} {
		status, eb := f.call(t, http.MethodGet, path, "", nil, nil)
		require.Equal(t, http.StatusUnauthorized, status, path)
		require.Equal(t, "Full authentication is required to access this resource", eb.Message)

		status, _ = f.call(t, http.MethodGet, path, "garbage", nil, nil)
		require.Equal(t, http.StatusUnauthorized, status, path)
	}
}

func TestExpiredToken(t *testing.T) {
	var offset atomic.Int64
	server, baseURL := apitest.NewTestServer(t, apitest.WithNowTime(func() time.Time {
		return fixedNow.Add(time.Duration(offset.Load()))
	}))
	_, err := server.AddUser(users.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	token, err := server.AccessToken("alice")
	require.NoError(t, err)

	f := &testFixture{server: server, baseURL: baseURL}
	status, _ := f.call(t, http.MethodGet, apitest.RouteMe, token, nil, nil)
	require.Equal(t, http.StatusOK, status)

	offset.Store(int64(2 * time.Hour))
	status, _ = f.call(t, http.MethodGet, apitest.RouteMe, token, nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestProducts_ListAndSort(t *testing.T) {
	f := setupTestFixture(t)

	var page catalog.ProductPage
	status, _ := f.call(t, http.MethodGet, apitest.RouteProducts, "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Products, 20)
	require.Equal(t, len(apitest.SeedProducts()), page.Total)
	require.Equal(t, 20, page.Limit)
	require.Equal(t, int64(1), page.Products[0].ID)

	f.call(t, http.MethodGet, apitest.RouteProducts+"?limit=12&skip=24", "", nil, &page)
	require.Len(t, page.Products, 6)
	require.Equal(t, 24, page.Skip)
	require.Equal(t, int64(25), page.Products[0].ID)

	f.call(t, http.MethodGet, apitest.RouteProducts+"?sortBy=price&order=desc&limit=5", "", nil, &page)
	for i := 1; i < len(page.Products); i++ {
		require.GreaterOrEqual(t, page.Products[i-1].Price, page.Products[i].Price)
	}

	f.call(t, http.MethodGet, apitest.RouteProducts+"?sortBy=title&order=asc&limit=100", "", nil, &page)
	require.Equal(t, "Annibale Colombo Bed", page.Products[0].Title)

	status, _ = f.call(t, http.MethodGet, apitest.RouteProducts+"?limit=abc", "", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestProducts_SearchAndGet(t *testing.T) {
	f := setupTestFixture(t)

	var page catalog.ProductPage
	status, _ := f.call(t, http.MethodGet, apitest.RouteSearch+"?q=PEPPER", "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, page.Total)

	status, _ = f.call(t, http.MethodGet, apitest.RouteSearch, "", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)

	var p catalog.Product
	status, _ = f.call(t, http.MethodGet, "/products/3", "", nil, &p)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Powder Canister", p.Title)

	status, eb := f.call(t, http.MethodGet, "/products/999", "", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Product not found", eb.Message)
}

func TestFavorites(t *testing.T) {
	f := setupTestFixture(t)

	var p catalog.Product
	status, _ := f.call(t, http.MethodPost, "/products/2/favorite", f.token, nil, &p)
	require.Equal(t, http.StatusCreated, status)
	require.True(t, p.Favorited)

	status, eb := f.call(t, http.MethodPost, "/products/2/favorite", f.token, nil, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Product already in favorites", eb.Message)

	status, _ = f.call(t, http.MethodPost, "/products/999/favorite", f.token, nil, nil)
	require.Equal(t, http.StatusNotFound, status)

	var favorites []catalog.Product
	f.call(t, http.MethodGet, apitest.RouteFavorites, f.token, nil, &favorites)
	require.Len(t, favorites, 1)
	require.True(t, favorites[0].Favorited)

	// Listings carry the flag for the signed-in user only
	var page catalog.ProductPage
	f.call(t, http.MethodGet, apitest.RouteProducts+"?limit=3", f.token, nil, &page)
	require.True(t, page.Products[1].Favorited)
	f.call(t, http.MethodGet, apitest.RouteProducts+"?limit=3", "", nil, &page)
	require.False(t, page.Products[1].Favorited)

	status, _ = f.call(t, http.MethodDelete, "/products/2/favorite", f.token, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, eb = f.call(t, http.MethodDelete, "/products/2/favorite", f.token, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Product not found in favorites", eb.Message)
}

func TestCart(t *testing.T) {
	f := setupTestFixture(t)

	var c cart.Cart
	status, _ := f.call(t, http.MethodGet, apitest.RouteCart, f.token, nil, &c)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, c.Items)
	require.Equal(t, int64(1), c.UserID)

	status, _ = f.call(t, http.MethodPost, apitest.RouteCartItems, f.token, cart.AddItemRequest{ProductID: 1, Quantity: 2}, &c)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, c.Items, 1)
	require.Equal(t, 19.98, c.Items[0].Total)
	require.Equal(t, 18.55, c.Items[0].DiscountedTotal)

	f.call(t, http.MethodPost, apitest.RouteCartItems, f.token, cart.AddItemRequest{ProductID: 1, Quantity: 1}, &c)
	require.Len(t, c.Items, 1, "same product merges into one line")
	require.Equal(t, 3, c.Items[0].Quantity)

	f.call(t, http.MethodPost, apitest.RouteCartItems, f.token, cart.AddItemRequest{ProductID: 16, Quantity: 1}, &c)
	require.Equal(t, 2, c.TotalProducts)
	require.Equal(t, 4, c.TotalQuantity)
	require.Equal(t, 31.96, c.TotalPrice)

	itemID := c.Items[0].CartItemID
	status, _ = f.call(t, http.MethodPatch, "/cart/items/"+itoa(itemID)+"?quantity=5", f.token, nil, &c)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 6, c.TotalQuantity)

	f.call(t, http.MethodPatch, "/cart/items/"+itoa(itemID)+"?quantity=0", f.token, nil, &c)
	require.Len(t, c.Items, 1)

	status, eb := f.call(t, http.MethodDelete, "/cart/items/"+itoa(itemID), f.token, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Cart item not found", eb.Message)

	status, _ = f.call(t, http.MethodDelete, apitest.RouteCart, f.token, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	f.call(t, http.MethodGet, apitest.RouteCart, f.token, nil, &c)
	require.Empty(t, c.Items)
}

func TestCart_Validation(t *testing.T) {
	f := setupTestFixture(t)

	status, eb := f.call(t, http.MethodPost, apitest.RouteCartItems, f.token, cart.AddItemRequest{ProductID: 1}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, eb.FieldErrors, "quantity")

	status, eb = f.call(t, http.MethodPost, apitest.RouteCartItems, f.token, cart.AddItemRequest{ProductID: 999, Quantity: 1}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Product not found", eb.Message)

	status, _ = f.call(t, http.MethodPatch, "/cart/items/1", f.token, nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestFailNextAndRequests(t *testing.T) {
	f := setupTestFixture(t)

	f.server.FailNext(http.MethodGet, apitest.APIRoot+apitest.RouteCart, http.StatusServiceUnavailable, "down for maintenance")

	status, eb := f.call(t, http.MethodGet, apitest.RouteCart, f.token, nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "down for maintenance", eb.Message)

	status, _ = f.call(t, http.MethodGet, apitest.RouteCart, f.token, nil, nil)
	require.Equal(t, http.StatusOK, status, "faults are one-shot")

	require.Equal(t, 2, f.server.RequestCount(http.MethodGet, apitest.APIRoot+apitest.RouteCart))
	reqs := f.server.Requests()
	require.Equal(t, http.StatusServiceUnavailable, reqs[0].Status)
	require.Equal(t, "Bearer "+f.token, reqs[0].Authorization)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
