// Package session keeps one browser session per seller account. Sessions
// use a persistent profile directory so that a login done once by hand is
// reused by later runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/types"
	"github.com/theeshop/listingbot/internal/utils"
)

const DefaultLoginURL = "https://www.etsy.com/signin"

var (
	ErrClosed     = errors.New("session manager is closed")
	ErrInvalidKey = errors.New("invalid account key")
)

// Session is the open browser of one account.
type Session struct {
	Key        string
	ProfileDir string
	Page       browser.Page
	CreatedAt  time.Time
}

// Registry persists the accounts that have been used.
type Registry interface {
	TouchAccount(ctx context.Context, a types.Account) error
}

type entry struct {
	ready chan struct{}
	s     *Session
	err   error
}

// Manager hands out sessions by account key. Acquiring the same key twice
// returns the same session; different keys may be used concurrently.
type Manager struct {
	driver      browser.Driver
	profilesDir string
	registry    Registry
	// LoginURL is opened by ManualLogin.
	LoginURL string

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewManager returns a manager storing profiles below profilesDir. registry
// may be nil.
func NewManager(driver browser.Driver, profilesDir string, registry Registry) *Manager {
	return &Manager{
		driver:      driver,
		profilesDir: profilesDir,
		registry:    registry,
		LoginURL:    DefaultLoginURL,
		entries:     map[string]*entry{},
	}
}

// ProfileDir returns the profile directory of key. Distinct keys get
// distinct directories.
func (m *Manager) ProfileDir(key string) string {
	return filepath.Join(m.profilesDir, "etsy_"+utils.FileName(key))
}

// Acquire returns the session of key, launching a browser on first use.
func (m *Manager) Acquire(ctx context.Context, key string) (*Session, error) {
	if utils.Slugify(key) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := m.entries[key]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			if e.err != nil {
				return nil, e.err
			}
			return e.s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	m.entries[key] = e
	m.mu.Unlock()

	e.s, e.err = m.open(ctx, key)

	m.mu.Lock()
	if e.err != nil {
		delete(m.entries, key)
	}
	close(e.ready)
	m.mu.Unlock()
	return e.s, e.err
}

func (m *Manager) open(ctx context.Context, key string) (*Session, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("account", key))
	dir := m.ProfileDir(key)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	page, err := m.driver.Open(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser for %s: %w", key, err)
	}
	s := &Session{Key: key, ProfileDir: dir, Page: page, CreatedAt: time.Now()}
	logger.Info(fmt.Sprintf("opened browser session with profile %s", dir))
	if m.registry != nil {
		acc := types.Account{Key: key, ProfileDir: dir, CreatedAt: s.CreatedAt, LastUsedAt: s.CreatedAt}
		if err := m.registry.TouchAccount(ctx, acc); err != nil {
			logger.Warn("failed to register account", slog.String("err", err.Error()))
		}
	}
	return s, nil
}

// Release closes the session of key. The driver is stopped once no session
// is left. Releasing an unknown key is a no-op.
func (m *Manager) Release(key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-e.ready

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] != e {
		return nil
	}
	delete(m.entries, key)
	var err error
	if e.s != nil {
		err = e.s.Page.Close()
	}
	if len(m.entries) == 0 {
		err = errors.Join(err, m.driver.Stop())
	}
	return err
}

// CloseAll releases every session and refuses further acquisitions.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	m.closed = true
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := m.Release(k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	if len(keys) == 0 {
		errs = append(errs, m.driver.Stop())
	}
	return errors.Join(errs...)
}

// Active returns the keys of the open sessions in sorted order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		select {
		case <-e.ready:
			if e.err == nil {
				keys = append(keys, k)
			}
		default:
		}
	}
	slices.Sort(keys)
	return keys
}

// ManualLogin opens the login page in the session of key and blocks until
// waiter reports that the user has logged in. The session stays open.
func (m *Manager) ManualLogin(ctx context.Context, key string, waiter LoginWaiter) error {
	s, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	logger := log.LoggerFromContext(ctx).With(slog.String("account", key))
	if err := s.Page.Navigate(ctx, m.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	logger.Info("waiting for manual login")
	if err := waiter.WaitForLogin(ctx, key); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("manual login finished, profile saved at %s", s.ProfileDir))
	return nil
}
