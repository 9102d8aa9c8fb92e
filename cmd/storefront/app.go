package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/storefront/internal/cartstore"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/infrastructure/localstore"
	"github.com/example/storefront/internal/ordersubmit"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/session"
	"go.uber.org/zap"
)

const usage = `usage: storefront <command> [flags]

commands:
  login     -id ID -email EMAIL [-name NAME] [-phone P] [-address A]
  logout
  add       -id ID -name NAME -price PRICE [-qty N] [-stock N] [-image URL] [-no-auth]
  remove    -id ID
  qty       -id ID -n QUANTITY [-stock N]
  cart      [-promo CODE]
  pending
  checkout  -draft FILE [-promo CODE]
  orders
  watch     wait for a login from another client and merge pending items`

type appConfig struct {
	storage       localstore.Storage
	apiURL        string
	timeout       time.Duration
	pollInterval  time.Duration
	redirectDelay time.Duration
	out           io.Writer
	logger        *zap.Logger
}

type app struct {
	cfg      appConfig
	out      io.Writer
	logger   *zap.Logger
	gate     *session.Gate
	cart     *cartstore.Store
	client   *ordersubmit.Client
	mirror   *ordersubmit.Mirror
	location string
}

// newApp wires the client exactly as a browser tab would: cart rehydrated,
// gate hooks registered, and pending items drained if a session exists.
func newApp(ctx context.Context, cfg appConfig) *app {
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.redirectDelay == 0 {
		cfg.redirectDelay = checkout.DefaultRedirectDelay
	}

	a := &app{cfg: cfg, out: cfg.out, logger: cfg.logger, location: "/"}

	a.gate = session.NewGate(cfg.storage,
		session.WithLogger(cfg.logger),
		session.WithLocation(func() string { return a.location }),
		session.WithRedirect(func(loginURL string) {
			fmt.Fprintf(a.out, "login required: %s\n", loginURL)
		}),
	)
	a.cart = cartstore.New(ctx, cfg.storage, a.gate, cartstore.WithLogger(cfg.logger))
	a.gate.OnAuthenticated(a.cart.DrainPending)
	a.gate.OnLogout(a.cart.Reset)
	a.gate.DrainPending()
	a.cart.Subscribe(func(items cart.Items) {
		fmt.Fprintf(a.out, "cart: %d items\n", items.Count())
	})

	a.client = ordersubmit.NewClient(cfg.apiURL, cfg.timeout)
	a.mirror = ordersubmit.NewMirror(cfg.storage, cfg.logger)
	return a
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "add":
		return a.add(rest)
	case "remove":
		return a.remove(rest)
	case "qty":
		return a.quantity(rest)
	case "cart":
		return a.showCart(rest)
	case "pending":
		a.printItems(a.cart.Pending())
		return nil
	case "checkout":
		return a.checkout(ctx, rest)
	case "orders":
		return a.orders(ctx)
	case "watch":
		return a.watch(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	var s session.Session
	fs.StringVar(&s.ID, "id", "", "customer id")
	fs.StringVar(&s.Email, "email", "", "email")
	fs.StringVar(&s.Name, "name", "", "display name")
	fs.StringVar(&s.Phone, "phone", "", "phone")
	fs.StringVar(&s.Address, "address", "", "street address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.gate.Login(ctx, s); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s (%d items in cart)\n", s.Email, a.cart.Count())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.gate.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) add(args []string) error {
	fs := newFlagSet("add")
	var p cart.Product
	var id string
	noAuth := fs.Bool("no-auth", false, "add without requiring a session")
	qty := fs.Int("qty", 1, "units to add")
	fs.StringVar(&id, "id", "", "product id")
	fs.StringVar(&p.Name, "name", "", "product name")
	fs.Float64Var(&p.Price, "price", 0, "unit price")
	fs.IntVar(&p.StockQuantity, "stock", 1, "units in stock")
	fs.StringVar(&p.Image, "image", "", "image url")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p.ID = cart.ProductID(id)

	item, err := cart.FromProduct(p)
	if err != nil {
		return err
	}

	a.location = "/products/" + item.ProductID.String()
	if !a.cart.AddItem(item, !*noAuth) {
		fmt.Fprintf(a.out, "%s saved; it will be added after login\n", item.Name)
		return nil
	}

	// AddItem merges one unit; the rest of the request is capped by stock.
	added, _ := a.cart.Items().Find(item.ProductID)
	requested := added.Quantity + *qty - 1
	want := cart.ClampQuantity(requested, p.StockQuantity)
	if want != added.Quantity {
		a.cart.SetQuantity(item.ProductID, want)
	}
	if want < requested {
		fmt.Fprintf(a.out, "only %d of %s in stock\n", p.StockQuantity, item.Name)
	}
	fmt.Fprintf(a.out, "added %s\n", item.Name)
	return nil
}

func (a *app) remove(args []string) error {
	fs := newFlagSet("remove")
	id := fs.String("id", "", "product id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a.cart.RemoveItem(cart.ProductID(strings.TrimSpace(*id)))
	return nil
}

func (a *app) quantity(args []string) error {
	fs := newFlagSet("qty")
	id := fs.String("id", "", "product id")
	n := fs.Int("n", 1, "quantity; 0 removes")
	stock := fs.Int("stock", 0, "units in stock; 0 when unknown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	quantity := *n
	if quantity > 0 {
		quantity = cart.ClampQuantity(quantity, *stock)
	}
	a.cart.SetQuantity(cart.ProductID(strings.TrimSpace(*id)), quantity)
	return nil
}

func (a *app) showCart(args []string) error {
	fs := newFlagSet("cart")
	promo := fs.String("promo", "", "promo code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *promo != "" {
		if _, err := pricing.ApplyPromo(*promo); err != nil {
			fmt.Fprintf(a.out, "promo %q rejected\n", *promo)
		}
	}

	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return nil
	}
	a.printItems(items)
	a.printBreakdown(pricing.Compute(items, *promo))
	return nil
}

func (a *app) printItems(items cart.Items) {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "(none)")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n", it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.Subtotal().StringFixed(2))
	}
	tw.Flush()
}

func (a *app) printBreakdown(b pricing.Breakdown) {
	fmt.Fprintf(a.out, "subtotal  %10.2f\n", b.Subtotal)
	if b.Discount > 0 {
		fmt.Fprintf(a.out, "discount  %10.2f (%s)\n", -b.Discount, b.PromoCode)
	}
	if b.FreeShipping() {
		fmt.Fprintf(a.out, "shipping  %10s\n", "free")
	} else {
		fmt.Fprintf(a.out, "shipping  %10.2f\n", b.Shipping)
	}
	fmt.Fprintf(a.out, "tax       %10.2f\n", b.Tax)
	fmt.Fprintf(a.out, "total     %10.2f\n", b.Total)
}

// Notify prints checkout notices.
func (a *app) Notify(kind checkout.NoticeKind, msg string) {
	fmt.Fprintf(a.out, "[%s] %s\n", kind, msg)
}

// navigator hands the redirect back to the command goroutine.
type navigator struct {
	done chan string
}

func (n *navigator) Navigate(path string) {
	select {
	case n.done <- path:
	default:
	}
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := newFlagSet("checkout")
	draftPath := fs.String("draft", "", "JSON file with shipping and payment sections")
	promo := fs.String("promo", "", "promo code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := os.ReadFile(*draftPath)
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}
	var draft checkout.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return fmt.Errorf("parse draft: %w", err)
	}

	a.location = checkout.Path
	nav := &navigator{done: make(chan string, 1)}
	w, err := checkout.Start(ctx, checkout.Deps{
		Cart:      a.cart,
		Sessions:  a.gate,
		Submitter: ordersubmit.NewSubmitter(a.client, a.mirror, a.logger),
		Notifier:  a,
		Navigator: nav,
		Logger:    a.logger,
	}, checkout.WithPromo(*promo), checkout.WithRedirectDelay(a.cfg.redirectDelay))
	if err != nil {
		var redirect *checkout.RedirectError
		if errors.As(err, &redirect) {
			fmt.Fprintf(a.out, "login required: %s\n", redirect.URL)
		}
		return err
	}

	w.UpdateShipping(mergeShipping(w.Draft().Shipping, draft.Shipping))
	if err := w.Advance(); err != nil {
		a.printFieldErrors(w.Errors())
		return err
	}
	w.UpdatePayment(draft.Payment)
	if err := w.Advance(); err != nil {
		a.printFieldErrors(w.Errors())
		return err
	}

	review := w.Review()
	a.printItems(review.Items)
	a.printBreakdown(review.Breakdown)

	placed, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s (%s)\n", placed.ID, placed.Status)

	select {
	case path := <-nav.done:
		fmt.Fprintf(a.out, "-> %s\n", path)
	case <-ctx.Done():
	case <-time.After(a.cfg.redirectDelay + time.Second):
	}
	return nil
}

// mergeShipping fills blanks in the file with the prefilled session values.
func mergeShipping(prefilled, given checkout.Shipping) checkout.Shipping {
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	return checkout.Shipping{
		FirstName: pick(given.FirstName, prefilled.FirstName),
		LastName:  pick(given.LastName, prefilled.LastName),
		Email:     pick(given.Email, prefilled.Email),
		Phone:     pick(given.Phone, prefilled.Phone),
		Address:   pick(given.Address, prefilled.Address),
		City:      pick(given.City, prefilled.City),
		State:     pick(given.State, prefilled.State),
		ZipCode:   pick(given.ZipCode, prefilled.ZipCode),
		Country:   pick(given.Country, prefilled.Country),
	}
}

func (a *app) printFieldErrors(errs map[string]string) {
	for field, msg := range errs {
		fmt.Fprintf(a.out, "  %s: %s\n", field, msg)
	}
}

func (a *app) orders(ctx context.Context) error {
	sess, err := a.gate.Current(ctx)
	if err != nil {
		a.location = "/orders"
		a.gate.RequireLogin()
		return err
	}

	history := ordersubmit.NewHistory(a.client, a.mirror, a.logger).Orders(ctx, sess.ID)
	if len(history) == 0 {
		fmt.Fprintln(a.out, "no orders yet")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
	for _, o := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\n", o.ID, o.OrderDate.Format("2006-01-02 15:04"), o.Status, len(o.OrderItems), o.TotalAmount)
	}
	return tw.Flush()
}

func (a *app) watch(ctx context.Context) error {
	fmt.Fprintf(a.out, "watching for login every %s (ctrl-c to stop)\n", a.cfg.pollInterval)
	a.gate.Poll(ctx, a.cfg.pollInterval)
	return nil
}
