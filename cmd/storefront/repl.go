package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/catalog"
	"github.com/jrsteele09/go-storefront/gateway"
	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/jrsteele09/go-storefront/navigation"
	"github.com/jrsteele09/go-storefront/notify"
	"github.com/jrsteele09/go-storefront/session"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
)

type command struct {
	usage  string
	help   string
	auth   bool // needs a signed-in user
	view   string
	action func(ctx context.Context, args []string) error
}

// repl is the interactive front end. It reads one command per line from in and renders
// to out. Notifications are printed as they arrive.
type repl struct {
	app *app.App
	in  *bufio.Scanner

	outLock sync.Mutex
	out     io.Writer

	commands  map[string]command
	order     []string
	query     catalog.Query
	search    string
	lastPage  *catalog.ProductPage
	challenge *session.TwoFactorChallenge
}

func newREPL(a *app.App, in io.Reader, out io.Writer) *repl {
	r := &repl{
		app:   a,
		in:    bufio.NewScanner(in),
		out:   out,
		query: catalog.Query{Limit: catalog.PageSize},
	}
	r.registerCommands()
	return r
}

func (r *repl) registerCommands() {
	r.commands = make(map[string]command)
	add := func(name string, c command) {
		r.commands[name] = c
		r.order = append(r.order, name)
	}

	add("products", command{usage: "products [page]", help: "list products", view: navigation.ViewProducts, action: r.products})
	add("next", command{usage: "next", help: "next page", view: navigation.ViewProducts, action: r.next})
	add("prev", command{usage: "prev", help: "previous page", view: navigation.ViewProducts, action: r.prev})
	add("sort", command{usage: "sort <n>", help: "choose a listing order", view: navigation.ViewProducts, action: r.sort})
	add("search", command{usage: "search <text>", help: "search products", view: navigation.ViewProducts, action: r.searchProducts})
	add("show", command{usage: "show <id>", help: "product details", view: navigation.ViewProducts, action: r.show})
	add("fav", command{usage: "fav <id>", help: "toggle a favorite", auth: true, action: r.toggleFavorite})
	add("favorites", command{usage: "favorites", help: "list favorites", auth: true, view: navigation.ViewFavorites, action: r.favorites})
	add("cart", command{usage: "cart", help: "show the cart", auth: true, view: navigation.ViewCart, action: r.showCart})
	add("add", command{usage: "add <productId> [qty]", help: "add to cart", auth: true, action: r.addToCart})
	add("qty", command{usage: "qty <cartItemId> <n>", help: "set a line quantity", auth: true, view: navigation.ViewCart, action: r.setQuantity})
	add("remove", command{usage: "remove <cartItemId>", help: "remove a line", auth: true, view: navigation.ViewCart, action: r.removeLine})
	add("clear", command{usage: "clear", help: "empty the cart", auth: true, view: navigation.ViewCart, action: r.clearCart})
	add("login", command{usage: "login <username> <password>", help: "sign in", view: navigation.ViewLogin, action: r.login})
	add("code", command{usage: "code <123456>", help: "answer a two-factor challenge", view: navigation.ViewLogin, action: r.code})
	add("register", command{usage: "register <username> <email> <password> <first> <last>", help: "create an account", view: navigation.ViewRegister, action: r.register})
	add("logout", command{usage: "logout", help: "sign out", auth: true, action: r.logout})
	add("me", command{usage: "me", help: "show the profile", auth: true, view: navigation.ViewProfile, action: r.me})
	add("2fa", command{usage: "2fa setup|confirm <code>|disable|cancel", help: "two-factor enrollment", auth: true, view: navigation.ViewProfile, action: r.twoFactor})
}

// Run reads commands until quit or end of input.
func (r *repl) Run(ctx context.Context) error {
	stopNotifications := r.app.Notifications.Subscribe(r.printNotification)
	defer stopNotifications()
	stopRouter := r.app.Router.Subscribe(func(view string) {
		r.printf("%s\n", colour(Gray, "→ "+view))
	})
	defer stopRouter()

	r.printf("Type %s for a list of commands.\n", colour(Cyan, "help"))
	for {
		r.prompt()
		if !r.in.Scan() {
			return r.in.Err()
		}
		fields := strings.Fields(r.in.Text())
		if len(fields) == 0 {
			continue
		}

		name, args := strings.ToLower(fields[0]), fields[1:]
		switch name {
		case "quit", "exit":
			return nil
		case "help":
			r.help()
			continue
		}

		c, ok := r.commands[name]
		if !ok {
			r.printf("unknown command %q\n", name)
			continue
		}
		if err := r.authorize(c); err != nil {
			r.app.Router.Navigate(navigation.ViewLogin)
			r.printf("Please sign in first.\n")
			continue
		}
		if c.view != "" {
			r.app.Router.Navigate(c.view)
		}
		if err := c.action(ctx, args); err != nil {
			r.printf("%s\n", colour(Red, err.Error()))
		}
	}
}

// authorize returns ErrNotSignedIn when c needs a user and nobody is signed in.
func (r *repl) authorize(c command) error {
	if c.auth && !r.app.Session.Snapshot().SignedIn() {
		return interrors.ErrNotSignedIn
	}
	return nil
}

func (r *repl) prompt() {
	label := "guest"
	if u := r.app.Session.User(); u != nil {
		label = u.Username
	}
	if n := r.app.Cart.ItemCount(); n > 0 {
		label += fmt.Sprintf(" 🛒%d", n)
	}
	if r.challenge != nil {
		label += " (2FA code?)"
	}
	r.printf("%s %s> ", colour(Yellow, label), r.app.Router.CurrentView())
}

func (r *repl) help() {
	tw := tabwriter.NewWriter(r.writer(), 0, 4, 2, ' ', 0)
	for _, name := range r.order {
		c := r.commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.help)
	}
	fmt.Fprintf(tw, "  %s\t%s\n", "quit", "leave")
	tw.Flush()
	r.release()
}

func (r *repl) products(ctx context.Context, args []string) error {
	r.search = ""
	if len(args) > 0 {
		page, err := strconv.Atoi(args[0])
		if err != nil || page < 1 {
			return errors.New("page must be a positive number")
		}
		r.query.Skip = (page - 1) * r.query.Limit
	}
	return r.loadPage(ctx)
}

func (r *repl) next(ctx context.Context, _ []string) error {
	if r.lastPage == nil || !r.lastPage.Pager().HasNext() {
		return errors.New("already on the last page")
	}
	r.query.Skip = r.lastPage.Pager().Next().Skip
	return r.loadPage(ctx)
}

func (r *repl) prev(ctx context.Context, _ []string) error {
	if r.lastPage == nil || !r.lastPage.Pager().HasPrev() {
		return errors.New("already on the first page")
	}
	r.query.Skip = r.lastPage.Pager().Prev().Skip
	return r.loadPage(ctx)
}

func (r *repl) sort(ctx context.Context, args []string) error {
	if len(args) == 0 {
		for i, o := range catalog.SortOptions {
			marker := " "
			if o == r.query.Sort {
				marker = "*"
			}
			r.printf(" %s %d. %s\n", marker, i+1, o.Label)
		}
		return nil
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > len(catalog.SortOptions) {
		return errors.Errorf("choose 1-%d", len(catalog.SortOptions))
	}
	r.query.Sort = catalog.SortOptions[i-1]
	r.query.Skip = 0
	r.search = ""
	return r.loadPage(ctx)
}

func (r *repl) searchProducts(ctx context.Context, args []string) error {
	r.search = strings.Join(args, " ")
	r.query.Skip = 0
	return r.loadPage(ctx)
}

func (r *repl) loadPage(ctx context.Context) error {
	var (
		page *catalog.ProductPage
		err  error
	)
	if r.search != "" {
		page, err = r.app.Catalog.Search(ctx, r.search, r.query.Limit, r.query.Skip)
	} else {
		page, err = r.app.Catalog.List(ctx, r.query)
	}
	if err != nil {
		return errors.New(gateway.UserMessage(err, "Failed to load products"))
	}
	r.lastPage = page
	r.printProducts(page.Products)

	pager := page.Pager()
	r.printf("%s\n", colour(Gray, fmt.Sprintf("page %d of %d (%d products)", pager.CurrentPage(), pager.TotalPages(), page.Total)))
	return nil
}

func (r *repl) show(ctx context.Context, args []string) error {
	id, err := parseID(args, "product id")
	if err != nil {
		return err
	}
	p, err := r.app.Catalog.Product(ctx, id)
	if err != nil {
		return errors.New(gateway.UserMessage(err, "Failed to load product"))
	}
	r.printf("%s  %s\n", colour(Cyan, p.Title), p.Stars())
	r.printf("%s\n%s | %s | %d in stock\n", p.Description, p.Brand, p.Category, p.Stock)
	r.printf("%s\n", p.PriceLabel())
	return nil
}

func (r *repl) toggleFavorite(ctx context.Context, args []string) error {
	id, err := parseID(args, "product id")
	if err != nil {
		return err
	}
	p, err := r.app.Catalog.Product(ctx, id)
	if err != nil {
		return errors.New(gateway.UserMessage(err, "Failed to update favorites"))
	}
	r.app.Catalog.ToggleFavorite(ctx, *p)
	return nil
}

func (r *repl) favorites(ctx context.Context, _ []string) error {
	products, err := r.app.Catalog.Favorites(ctx)
	if err != nil {
		return errors.New(gateway.UserMessage(err, "Failed to load favorites"))
	}
	if len(products) == 0 {
		r.printf("No favorites yet.\n")
		return nil
	}
	r.printProducts(products)
	return nil
}

func (r *repl) showCart(ctx context.Context, _ []string) error {
	r.app.Cart.Fetch(ctx)
	c := r.app.Cart.Cart()
	if c == nil || len(c.Items) == 0 {
		r.printf("Your cart is empty.\n")
		return nil
	}
	r.printCart(c)
	return nil
}

func (r *repl) addToCart(ctx context.Context, args []string) error {
	id, err := parseID(args, "product id")
	if err != nil {
		return err
	}
	qty := cart.DefaultQuantity
	if len(args) > 1 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return interrors.Wrapf(interrors.ErrInvalidQuantity, "quantity must be a number")
		}
	}
	r.app.Cart.AddItem(ctx, id, qty)
	return nil
}

func (r *repl) setQuantity(ctx context.Context, args []string) error {
	id, err := parseID(args, "cart item id")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: qty <cartItemId> <n>")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return interrors.Wrapf(interrors.ErrInvalidQuantity, "quantity must be a number")
	}
	r.app.Cart.UpdateQuantity(ctx, id, qty)
	if c := r.app.Cart.Cart(); c != nil {
		r.printCart(c)
	}
	return nil
}

func (r *repl) removeLine(ctx context.Context, args []string) error {
	id, err := parseID(args, "cart item id")
	if err != nil {
		return err
	}
	r.app.Cart.RemoveItem(ctx, id)
	return nil
}

func (r *repl) clearCart(ctx context.Context, _ []string) error {
	r.app.Cart.Clear(ctx)
	return nil
}

func (r *repl) login(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: login <username> <password>")
	}
	creds := users.Credentials{Username: args[0], Password: args[1]}
	if err := creds.Validate(); err != nil {
		return err
	}

	resp, err := r.app.Session.Login(ctx, creds)
	if err != nil {
		return errors.New(gateway.UserMessage(err, "Login failed"))
	}
	if r.challenge = session.NewChallenge(resp); r.challenge != nil {
		r.printf("%s\n", colour(Yellow, "Enter the 6-digit code from your authenticator app: code <123456>"))
		return nil
	}
	r.welcome()
	return nil
}

func (r *repl) code(ctx context.Context, args []string) error {
	if r.challenge == nil {
		return errors.New("no sign in is waiting for a code")
	}
	if len(args) > 0 && strings.EqualFold(args[0], "cancel") {
		r.challenge.Cancel()
		r.challenge = nil
		return nil
	}
	r.challenge.SetCode(strings.Join(args, ""))
	if !r.challenge.Ready() {
		return errors.Errorf("the code has %d digits", session.CodeLength)
	}

	if _, err := r.app.Session.Verify2FA(ctx, r.challenge.ChallengeToken, r.challenge.Code); err != nil {
		return errors.New(gateway.UserMessage(err, "Verification failed"))
	}
	r.challenge = nil
	r.welcome()
	return nil
}

func (r *repl) register(ctx context.Context, args []string) error {
	if len(args) < 5 {
		return errors.New("usage: register <username> <email> <password> <first> <last>")
	}
	req := users.RegisterRequest{
		Username:  args[0],
		Email:     args[1],
		Password:  args[2],
		FirstName: args[3],
		LastName:  strings.Join(args[4:], " "),
	}
	if _, err := r.app.Session.Register(ctx, req); err != nil {
		return errors.New(gateway.FieldMessage(err, "Registration failed"))
	}
	r.welcome()
	return nil
}

func (r *repl) logout(ctx context.Context, _ []string) error {
	r.challenge = nil
	if err := r.app.Session.Logout(ctx); err != nil {
		return err
	}
	r.app.Router.Navigate(navigation.ViewLogin)
	return nil
}

func (r *repl) me(ctx context.Context, _ []string) error {
	u := r.app.Session.User()
	if u == nil {
		return errors.New("not signed in")
	}
	status := colour(Gray, "off")
	if u.TwoFactorEnabled {
		status = colour(Green, "on")
	}
	r.printf("%s (@%s)\n%s\nmember since %s\ntwo-factor: %s\n", u.DisplayName(), u.Username, u.Email, u.CreatedAt, status)

	if claims, err := r.app.Session.Claims(ctx); err == nil && !claims.ExpiresAt.IsZero() {
		r.printf("%s\n", colour(Gray, fmt.Sprintf("session expires %s", claims.ExpiresAt.Local().Format("15:04 Jan 2"))))
	}
	return nil
}

func (r *repl) twoFactor(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: 2fa setup|confirm <code>|disable|cancel")
	}
	switch strings.ToLower(args[0]) {
	case "setup":
		if e := r.app.Profile.SetupTwoFactor(ctx); e != nil {
			r.printf("%s\nsecret: %s\nuri:    %s\n", e.Message, colour(Cyan, e.Secret), e.QRCodeURI)
		}
	case "confirm":
		if r.app.Profile.Pending() == nil {
			return errors.New("run 2fa setup first")
		}
		r.app.Profile.ConfirmTwoFactor(ctx, strings.Join(args[1:], ""))
	case "disable":
		r.app.Profile.DisableTwoFactor(ctx)
	case "cancel":
		r.app.Profile.CancelSetup()
	default:
		return errors.Errorf("unknown 2fa action %q", args[0])
	}
	return nil
}

func (r *repl) welcome() {
	if u := r.app.Session.User(); u != nil {
		r.printf("Welcome, %s!\n", u.DisplayName())
	}
	r.app.Router.Navigate(navigation.ViewProducts)
}

func (r *repl) printProducts(products []catalog.Product) {
	tw := tabwriter.NewWriter(r.writer(), 0, 4, 2, ' ', 0)
	for _, p := range products {
		heart := " "
		if p.Favorited {
			heart = "♥"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, heart, p.Title, p.Stars(), p.PriceLabel())
	}
	tw.Flush()
	r.release()
}

func (r *repl) printCart(c *cart.Cart) {
	tw := tabwriter.NewWriter(r.writer(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "item\tproduct\tqty\tprice\ttotal\n")
	for _, it := range c.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", it.CartItemID, it.Title, it.Quantity, utils.Money(it.Price), utils.Money(it.DiscountedTotal))
	}
	fmt.Fprintf(tw, "\t%d products\t%d\t\t%s\n", c.TotalProducts, c.TotalQuantity, utils.Money(c.TotalDiscountedPrice))
	tw.Flush()
	r.release()
	if s := c.Savings(); s > 0 {
		r.printf("%s\n", colour(Green, "You save "+utils.Money(s)))
	}
}

func (r *repl) printNotification(e notify.Event) {
	if e.Type != notify.EventAdded {
		return
	}
	n := e.Notification
	r.printf("%s\n", colour(kindColors[n.Kind], "● "+n.Message))
}

func (r *repl) printf(format string, args ...any) {
	r.outLock.Lock()
	defer r.outLock.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// writer locks out for a multi-line write; call release when done.
func (r *repl) writer() io.Writer {
	r.outLock.Lock()
	return r.out
}

func (r *repl) release() {
	r.outLock.Unlock()
}

func parseID(args []string, what string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.Errorf("%s is required", what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.Errorf("%s must be a number", what)
	}
	return id, nil
}
