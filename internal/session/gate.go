// Package session answers whether a shopper is logged in and bridges
// anonymous cart activity into the authenticated session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

const (
	LoginPath      = "/auth/login"
	storageTimeout = 2 * time.Second
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrInvalidSession = errors.New("session requires id and email")
)

// Session is the stored record of a logged-in shopper. Tokens are issued by
// the external identity provider and are not kept here.
type Session struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// LoginURL builds the login redirect for a page that needs a session.
func LoginURL(returnPath string) string {
	if returnPath == "" {
		returnPath = "/"
	}
	return LoginPath + "?redirect=" + url.QueryEscape(returnPath)
}

type Gate struct {
	storage  localstore.Storage
	logger   *zap.Logger
	redirect func(loginURL string)
	location func() string

	mu              sync.Mutex
	onAuthenticated []func()
	onLogout        []func()
}

type Option func(*Gate)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRedirect sets the side effect used when a gated action needs a login.
func WithRedirect(fn func(loginURL string)) Option {
	return func(g *Gate) { g.redirect = fn }
}

// WithLocation sets how the gate learns the page to return to after login.
func WithLocation(fn func() string) Option {
	return func(g *Gate) { g.location = fn }
}

func NewGate(storage localstore.Storage, opts ...Option) *Gate {
	g := &Gate{
		storage:  storage,
		logger:   zap.NewNop(),
		redirect: func(string) {},
		location: func() string { return "/" },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAuthenticated is true iff a readable session record exists.
func (g *Gate) IsAuthenticated() bool {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	_, err := g.Current(ctx)
	return err == nil
}

// Current returns the stored session. An unreadable record counts as no
// session.
func (g *Gate) Current(ctx context.Context) (*Session, error) {
	var s Session
	err := localstore.LoadJSON(ctx, g.storage, localstore.KeySession, &s)
	switch {
	case err == nil:
		return &s, nil
	case errors.Is(err, localstore.ErrNotFound):
		return nil, ErrNoSession
	case errors.Is(err, localstore.ErrCorrupt):
		g.logger.Warn("Session record is unreadable", zap.Error(err))
		return nil, ErrNoSession
	default:
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
}

// Login stores the session and replays pending cart items right away.
func (g *Gate) Login(ctx context.Context, s Session) error {
	s.ID = strings.TrimSpace(s.ID)
	s.Email = strings.TrimSpace(s.Email)
	if s.ID == "" || s.Email == "" {
		return ErrInvalidSession
	}
	if err := localstore.SaveJSON(ctx, g.storage, localstore.KeySession, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	g.logger.Info("Shopper logged in", zap.String("customer_id", s.ID))
	g.DrainPending()
	return nil
}

// Logout removes the session record; logout hooks clear the cart.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.storage.Remove(ctx, localstore.KeySession); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	for _, fn := range g.hooks(&g.onLogout) {
		fn()
	}
	g.logger.Info("Shopper logged out")
	return nil
}

// OnAuthenticated registers fn to run on every DrainPending while logged in.
func (g *Gate) OnAuthenticated(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onAuthenticated = append(g.onAuthenticated, fn)
}

// OnLogout registers fn to run after logout.
func (g *Gate) OnLogout(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = append(g.onLogout, fn)
}

// DrainPending runs the authenticated hooks if a session exists. Calling it
// repeatedly is safe.
func (g *Gate) DrainPending() {
	if !g.IsAuthenticated() {
		return
	}
	for _, fn := range g.hooks(&g.onAuthenticated) {
		fn()
	}
}

// RequireLogin signals the redirect to the login page.
func (g *Gate) RequireLogin() {
	g.redirect(LoginURL(g.location()))
}

// Poll calls DrainPending every interval until ctx is done. It picks up a
// login completed by another process sharing the same storage; it is a
// fallback, Login already drains.
func (g *Gate) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.DrainPending()
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gate) hooks(list *[]func()) []func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]func(), len(*list))
	copy(out, *list)
	return out
}
