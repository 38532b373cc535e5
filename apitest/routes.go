package apitest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Route path constants, relative to APIRoot
const (
	APIRoot = "/api"

	RouteRegister   = "/auth/register"
	RouteLogin      = "/auth/login"
	RouteVerify2FA  = "/auth/2fa/verify"
	RouteMe         = "/auth/me"
	RouteSetup2FA   = "/auth/2fa/setup"
	RouteConfirm2FA = "/auth/2fa/confirm"
	RouteDisable2FA = "/auth/2fa"

	RouteProducts  = "/products"
	RouteProduct   = "/products/{id}"
	RouteSearch    = "/products/search"
	RouteFavorites = "/products/favorites"
	RouteFavorite  = "/products/{id}/favorite"

	RouteCart      = "/cart"
	RouteCartItems = "/cart/items"
	RouteCartItem  = "/cart/items/{id}"
)

const requestTimeout = 30 * time.Second

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(s.faultMiddleware)

	r.Route(APIRoot, func(r chi.Router) {
		r.Post(RouteRegister, s.registerHandler)
		r.Post(RouteLogin, s.loginHandler)
		r.Post(RouteVerify2FA, s.verifyTwoFactorHandler)

		// Listings work anonymously; favorited flags are filled in for a signed-in user
		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuth)
			r.Get(RouteProducts, s.listProductsHandler)
			r.Get(RouteSearch, s.searchProductsHandler)
			r.Get(RouteProduct, s.getProductHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get(RouteMe, s.meHandler)
			r.Post(RouteSetup2FA, s.setupTwoFactorHandler)
			r.Post(RouteConfirm2FA, s.confirmTwoFactorHandler)
			r.Delete(RouteDisable2FA, s.disableTwoFactorHandler)

			r.Get(RouteFavorites, s.favoritesHandler)
			r.Post(RouteFavorite, s.addFavoriteHandler)
			r.Delete(RouteFavorite, s.removeFavoriteHandler)

			r.Get(RouteCart, s.getCartHandler)
			r.Delete(RouteCart, s.clearCartHandler)
			r.Post(RouteCartItems, s.addCartItemHandler)
			r.Delete(RouteCartItem, s.removeCartItemHandler)
			r.Patch(RouteCartItem, s.updateCartItemHandler)
		})
	})

	s.router = r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.record(r, ww.Status())
		log.Debug().
			Str("request_id", r.Header.Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("apitest")
	})
}
