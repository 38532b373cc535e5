package navigation

// View path constants
// Every view the storefront can show is named here so redirects and guards agree
const (
	ViewProducts  = "/"
	ViewLogin     = "/login"
	ViewRegister  = "/register"
	ViewCart      = "/cart"
	ViewFavorites = "/favorites"
	ViewProfile   = "/profile"
)

// PublicViews are reachable without a signed-in user.
var PublicViews = map[string]struct{}{
	ViewLogin:    {},
	ViewRegister: {},
}

// IsPublic reports whether view can be shown to an anonymous user
func IsPublic(view string) bool {
	_, ok := PublicViews[view]
	return ok
}
