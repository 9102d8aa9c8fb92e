// Package checkout drives the three-step checkout: shipping, payment, review.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/ordersubmit"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/session"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Path = "/checkout"

	DefaultSuccessPath   = "/products"
	DefaultRedirectDelay = 1500 * time.Millisecond
	DefaultCountry       = "Ghana"
)

const (
	MsgShippingIncomplete = "Please fill in all required shipping information"
	MsgPaymentIncomplete  = "Please fill in all required payment information"
	MsgFormIncomplete     = "Please complete all required fields"
	MsgOrderPlaced        = "Order placed successfully! Redirecting..."
	MsgOrderFailed        = "Failed to place order. Please try again."
	MsgEmptyCart          = "Your cart is empty"
	MsgPromoApplied       = "Promo code applied"
)

var (
	ErrNotAuthenticated = errors.New("checkout requires a logged-in session")
	ErrNotReady         = errors.New("order can only be placed from the review step")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCompleted        = errors.New("checkout already completed")
)

// RedirectError tells the caller where to send an unauthenticated shopper.
type RedirectError struct {
	URL string
	Err error
}

func (e *RedirectError) Error() string { return fmt.Sprintf("%v: redirect to %s", e.Err, e.URL) }
func (e *RedirectError) Unwrap() error { return e.Err }

type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Items() cart.Items
	Clear()
}

type Sessions interface {
	IsAuthenticated() bool
	Current(ctx context.Context) (*session.Session, error)
}

type Submitter interface {
	Submit(ctx context.Context, req ordersubmit.Request) (*order.Order, error)
}

type Notifier interface {
	Notify(kind NoticeKind, message string)
}

type Navigator interface {
	Navigate(path string)
}

type Deps struct {
	Cart      Cart
	Sessions  Sessions
	Submitter Submitter
	Notifier  Notifier
	Navigator Navigator
	Logger    *zap.Logger
}

// Draft is the form state carried between steps.
type Draft struct {
	Shipping Shipping `json:"shipping"`
	Payment  Payment  `json:"payment"`
}

// Review is everything the final step renders.
type Review struct {
	Draft     Draft             `json:"draft"`
	Items     cart.Items        `json:"items"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

type config struct {
	promo          string
	successPath    string
	delay          time.Duration
	idempotencyKey func() string
}

type Option func(*config)

func WithPromo(code string) Option {
	return func(c *config) { c.promo = code }
}

func WithSuccessPath(path string) Option {
	return func(c *config) { c.successPath = path }
}

func WithRedirectDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

func WithIdempotencyKey(fn func() string) Option {
	return func(c *config) { c.idempotencyKey = fn }
}

type Workflow struct {
	deps     Deps
	logger   *zap.Logger
	validate *validator.Validate
	cfg      config

	mu       sync.Mutex
	step     Step
	draft    Draft
	errors   map[string]string
	promo    string
	key      string
	inFlight bool
}

// Start opens a checkout for the logged-in shopper, prefilling shipping from
// the session record.
func Start(ctx context.Context, deps Deps, opts ...Option) (*Workflow, error) {
	if deps.Sessions == nil || !deps.Sessions.IsAuthenticated() {
		return nil, &RedirectError{URL: session.LoginURL(Path), Err: ErrNotAuthenticated}
	}
	sess, err := deps.Sessions.Current(ctx)
	if err != nil {
		return nil, &RedirectError{URL: session.LoginURL(Path), Err: fmt.Errorf("%w: %v", ErrNotAuthenticated, err)}
	}

	cfg := config{
		successPath:    DefaultSuccessPath,
		delay:          DefaultRedirectDelay,
		idempotencyKey: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Workflow{
		deps:     deps,
		logger:   logger.With(zap.String("customer_id", sess.ID)),
		validate: newValidator(),
		cfg:      cfg,
		step:     StepShipping,
		draft:    Draft{Shipping: prefill(sess)},
		errors:   map[string]string{},
	}
	if canonical, err := pricing.ApplyPromo(cfg.promo); err == nil {
		w.promo = canonical
	}
	return w, nil
}

func prefill(s *session.Session) Shipping {
	first, last, _ := strings.Cut(strings.TrimSpace(s.Name), " ")
	return Shipping{
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Email:     s.Email,
		Phone:     s.Phone,
		Address:   s.Address,
		Country:   DefaultCountry,
	}
}

func (w *Workflow) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Workflow) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Errors returns the current field messages keyed by form field name.
func (w *Workflow) Errors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.errors))
	for k, v := range w.errors {
		out[k] = v
	}
	return out
}

func (w *Workflow) PromoCode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.promo
}

func (w *Workflow) UpdateShipping(s Shipping) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearChanged(w.draft.Shipping, s)
	w.draft.Shipping = s
}

func (w *Workflow) UpdatePayment(p Payment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearChanged(w.draft.Payment, p)
	w.draft.Payment = p
}

// clearChanged drops errors for fields whose value was edited.
func (w *Workflow) clearChanged(before, after any) {
	if len(w.errors) == 0 || before == after {
		return
	}
	prev := fieldValues(before)
	for name, value := range fieldValues(after) {
		if prev[name] != value {
			delete(w.errors, name)
		}
	}
}

func fieldValues(section any) map[string]string {
	switch s := section.(type) {
	case Shipping:
		return map[string]string{
			"firstName": s.FirstName, "lastName": s.LastName, "email": s.Email,
			"phone": s.Phone, "address": s.Address, "city": s.City,
			"state": s.State, "zipCode": s.ZipCode, "country": s.Country,
		}
	case Payment:
		return map[string]string{
			"cardNumber": s.CardNumber, "expiryDate": s.ExpiryDate,
			"cvv": s.CVV, "cardName": s.CardName,
		}
	}
	return nil
}

// Advance validates the current section and moves forward on success.
func (w *Workflow) Advance() error {
	w.mu.Lock()

	var (
		section any
		next    Step
		msg     string
	)
	switch w.step {
	case StepShipping:
		section, next, msg = w.draft.Shipping, StepPayment, MsgShippingIncomplete
	case StepPayment:
		section, next, msg = w.draft.Payment, StepReview, MsgPaymentIncomplete
	case StepDone:
		w.mu.Unlock()
		return ErrCompleted
	default:
		w.mu.Unlock()
		return nil
	}

	errs := fieldErrors(w.validate, section)
	w.errors = errs
	if len(errs) > 0 {
		w.mu.Unlock()
		w.notify(NoticeError, msg)
		return &ValidationError{Fields: errs}
	}
	w.step = next
	w.mu.Unlock()
	return nil
}

// Back returns to the previous step keeping the entered data.
func (w *Workflow) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepPayment || w.step == StepReview {
		w.step--
		w.errors = map[string]string{}
	}
}

// ApplyPromo sets the promo code used for the breakdown. An unknown code is
// rejected and the previous code stays in effect.
func (w *Workflow) ApplyPromo(code string) error {
	canonical, err := pricing.ApplyPromo(code)
	if err != nil {
		w.notify(NoticeError, "Invalid promo code")
		return err
	}
	w.mu.Lock()
	w.promo = canonical
	w.mu.Unlock()
	w.notify(NoticeSuccess, MsgPromoApplied)
	return nil
}

func (w *Workflow) Review() Review {
	items := w.deps.Cart.Items()

	w.mu.Lock()
	defer w.mu.Unlock()
	return Review{
		Draft:     w.draft,
		Items:     items,
		Breakdown: pricing.Compute(items, w.promo),
	}
}

// Submit places the order from the review step. Failures leave the draft,
// the cart and the step untouched so the shopper can retry; a retry reuses
// the idempotency key of the first attempt.
func (w *Workflow) Submit(ctx context.Context) (*order.Order, error) {
	w.mu.Lock()
	if w.step == StepDone {
		w.mu.Unlock()
		return nil, ErrCompleted
	}
	if w.step != StepReview || w.inFlight {
		w.mu.Unlock()
		return nil, ErrNotReady
	}

	errs := fieldErrors(w.validate, w.draft.Shipping)
	for k, v := range fieldErrors(w.validate, w.draft.Payment) {
		errs[k] = v
	}
	w.errors = errs
	if len(errs) > 0 {
		w.mu.Unlock()
		w.notify(NoticeError, MsgFormIncomplete)
		return nil, &ValidationError{Fields: errs}
	}

	if w.key == "" {
		w.key = w.cfg.idempotencyKey()
	}
	w.inFlight = true
	draft, promo, key := w.draft, w.promo, w.key
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}()

	items := w.deps.Cart.Items()
	if len(items) == 0 {
		w.notify(NoticeError, MsgEmptyCart)
		return nil, ErrEmptyCart
	}

	sess, err := w.deps.Sessions.Current(ctx)
	if err != nil {
		w.notify(NoticeError, MsgOrderFailed)
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	req := ordersubmit.Request{
		CustomerID:     sess.ID,
		Items:          items,
		Breakdown:      pricing.Compute(items, promo),
		Shipping:       shippingAddress(draft.Shipping),
		IdempotencyKey: key,
	}

	placed, err := w.deps.Submitter.Submit(ctx, req)
	if err != nil {
		w.logger.Warn("place order failed", zap.String("idempotency_key", key), zap.Error(err))
		w.notify(NoticeError, failureMessage(err))
		return nil, err
	}

	w.deps.Cart.Clear()

	w.mu.Lock()
	w.step = StepDone
	w.mu.Unlock()

	w.logger.Info("order placed", zap.String("order_id", placed.ID))
	w.notify(NoticeSuccess, MsgOrderPlaced)
	w.scheduleNavigation()
	return placed, nil
}

func (w *Workflow) scheduleNavigation() {
	if w.deps.Navigator == nil {
		return
	}
	path := w.cfg.successPath
	time.AfterFunc(w.cfg.delay, func() {
		w.deps.Navigator.Navigate(path)
	})
}

func failureMessage(err error) string {
	if apiErr, ok := ordersubmit.IsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgOrderFailed
}

func shippingAddress(s Shipping) order.ShippingAddress {
	return order.ShippingAddress{
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Phone:     s.Phone,
		Address:   s.Address,
		City:      s.City,
		State:     s.State,
		ZipCode:   s.ZipCode,
		Country:   s.Country,
	}
}

func (w *Workflow) notify(kind NoticeKind, msg string) {
	if w.deps.Notifier != nil {
		w.deps.Notifier.Notify(kind, msg)
	}
}
