// Package session owns the persisted store identity of the current user.
//
// A Manager is a small finite state machine:
//
//	Uninitialized → Loading → {Ready | Error}
//	Ready → Reconnecting → {Ready | Error}
//
// Reconnect attempts are serialized and capped. Once the cap is exceeded the
// identity is cleared and every identity bound call fails with
// ErrUnrecoverable until the identity is regenerated or explicitly cleared.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/etnz/aurum/kv"
)

// StorageKey is the well-known key of the persisted identity.
const StorageKey = "sessionIdentity"

const (
	DefaultMaxAttempts   = 3
	DefaultTTL           = 24 * time.Hour
	DefaultCheckInterval = 30 * time.Second
)

var (
	// ErrUnrecoverable is returned once reconnection gave up and the identity was cleared.
	ErrUnrecoverable = errors.New("session unrecoverable")
	// ErrNoIdentity is returned when no identity is loaded.
	ErrNoIdentity = errors.New("no session identity")
	// ErrIllegalTransition reports a state change the state machine does not allow.
	ErrIllegalTransition = errors.New("illegal session state transition")
)

// State is the state of a Manager.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Reconnecting
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Reconnecting:
		return "reconnecting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// transitions lists the allowed state changes. Clearing the identity is
// always allowed and is not listed.
var transitions = map[State][]State{
	Uninitialized: {Loading},
	Loading:       {Ready, Error},
	Ready:         {Loading, Reconnecting},
	Reconnecting:  {Ready, Error},
	Error:         {Loading, Reconnecting},
}

func canTransition(from, to State) bool {
	if to == Uninitialized {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Observer receives reconnect outcomes: "ok", "failed" or "unrecoverable".
type Observer interface {
	Reconnect(outcome string)
}

// Options configures a Manager. Zero values get defaults.
type Options struct {
	Store         kv.Store
	Logger        *slog.Logger
	Clock         func() time.Time
	Rand          io.Reader
	Derive        func(*Identity) (string, error)
	MaxAttempts   int
	TTL           time.Duration
	CheckInterval time.Duration
	Observer      Observer
}

// Manager manages the lifecycle of the session identity.
type Manager struct {
	opts Options

	mu            sync.Mutex
	state         State
	identity      *Identity
	address       string
	attempts      int
	unrecoverable bool
	err           error
}

// New returns a Manager in the Uninitialized state.
func New(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = kv.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Derive == nil {
		opts.Derive = DeriveAddress
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	return &Manager{opts: opts}
}

// persisted is the layout stored under StorageKey.
type persisted struct {
	Identity  *Identity `json:"identity"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Address returns the derived address, empty when it is missing.
func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

// Identity returns the loaded identity or nil.
func (m *Manager) Identity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Attempts returns the number of reconnect attempts since the last success.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Err returns the last error that moved the manager into the Error state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) transition(to State) error {
	if !canTransition(m.state, to) {
		return fmt.Errorf("%w: %v to %v", ErrIllegalTransition, m.state, to)
	}
	m.opts.Logger.Debug("session state", "from", m.state, "to", to)
	m.state = to
	return nil
}

// Mount loads the persisted identity, or generates one, and starts the
// liveness check. The check stops when ctx is done.
func (m *Manager) Mount(ctx context.Context) error {
	err := m.Load(ctx)
	go m.watch(ctx)
	return err
}

func (m *Manager) watch(ctx context.Context) {
	ticker := time.NewTicker(m.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckLiveness(ctx)
		}
	}
}

// CheckLiveness triggers a reconnection when an identity exists but its address is missing.
func (m *Manager) CheckLiveness(ctx context.Context) {
	m.mu.Lock()
	missing := m.identity != nil && m.address == ""
	m.mu.Unlock()
	if !missing {
		return
	}
	m.opts.Logger.Warn("session identity has no address, reconnecting")
	if err := m.Reconnect(ctx); err != nil {
		m.opts.Logger.Error("session reconnection failed", "err", err)
	}
}

// Load reads the persisted identity. An absent, expired or corrupt identity is replaced by a new one.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) error {
	if err := m.transition(Loading); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return m.failLocked(err)
	}

	id, err := m.readPersisted()
	switch {
	case errors.Is(err, kv.ErrNotFound):
		m.opts.Logger.Info("no session identity found, generating a new one")
		return m.generateLocked()
	case errors.Is(err, errExpired):
		m.opts.Logger.Info("session identity expired, generating a new one")
		return m.generateLocked()
	case err != nil:
		m.opts.Logger.Warn("invalid session identity, generating a new one", "err", err)
		return m.generateLocked()
	}

	m.identity = id
	addr, err := m.opts.Derive(id)
	if err != nil {
		// The identity is kept: the liveness check will retry the derivation.
		m.address = ""
		return m.failLocked(fmt.Errorf("cannot load session address: %w", err))
	}
	m.readyLocked(addr)
	return nil
}

var errExpired = errors.New("session identity expired")

func (m *Manager) readPersisted() (*Identity, error) {
	var p persisted
	if err := kv.GetJSON(m.opts.Store, StorageKey, &p); err != nil {
		return nil, err
	}
	if p.Identity == nil {
		return nil, fmt.Errorf("persisted session has no identity")
	}
	if m.opts.Clock().Sub(time.UnixMilli(p.Timestamp)) > m.opts.TTL {
		return nil, errExpired
	}
	return p.Identity, nil
}

func (m *Manager) persistLocked(id *Identity) error {
	return kv.SetJSON(m.opts.Store, StorageKey, persisted{Identity: id, Timestamp: m.opts.Clock().UnixMilli()})
}

// Generate replaces the current identity with a brand-new one.
func (m *Manager) Generate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Loading {
		if err := m.transition(Loading); err != nil {
			return err
		}
	}
	return m.generateLocked()
}

// generateLocked creates, persists and installs a new identity. The current
// state must be Loading or Reconnecting.
func (m *Manager) generateLocked() error {
	id, addr, err := m.newIdentityLocked()
	if err != nil {
		return m.failLocked(err)
	}
	m.identity = id
	m.readyLocked(addr)
	return nil
}

func (m *Manager) newIdentityLocked() (*Identity, string, error) {
	id, err := Generate(m.opts.Rand)
	if err != nil {
		return nil, "", err
	}
	addr, err := m.opts.Derive(id)
	if err != nil {
		return nil, "", fmt.Errorf("cannot derive address of new identity: %w", err)
	}
	if err := m.persistLocked(id); err != nil {
		return nil, "", fmt.Errorf("cannot persist new identity: %w", err)
	}
	return id, addr, nil
}

func (m *Manager) readyLocked(addr string) {
	m.address = addr
	m.attempts = 0
	m.unrecoverable = false
	m.err = nil
	if err := m.transition(Ready); err != nil {
		m.opts.Logger.Error("session", "err", err)
	}
}

func (m *Manager) failLocked(err error) error {
	m.err = err
	if terr := m.transition(Error); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

// Reconnect tries to restore a usable identity: first re-deriving the address
// of the in-memory identity, then reloading the persisted one, and finally
// generating a new one. Attempts are counted and capped; past the cap the
// identity is cleared and ErrUnrecoverable is returned.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unrecoverable {
		return ErrUnrecoverable
	}
	if m.state == Uninitialized {
		return m.loadLocked(ctx)
	}
	if m.attempts >= m.opts.MaxAttempts {
		m.opts.Logger.Error("max session reconnect attempts reached, clearing identity", "attempts", m.attempts)
		m.clearLocked()
		m.unrecoverable = true
		m.observe("unrecoverable")
		return ErrUnrecoverable
	}

	m.attempts++
	log := m.opts.Logger.With("attempt", m.attempts, "max", m.opts.MaxAttempts)
	if err := m.transition(Reconnecting); err != nil {
		return err
	}
	log.Info("session reconnect")

	var errs error
	// (a) the identity in memory.
	if m.identity != nil {
		addr, err := m.opts.Derive(m.identity)
		if err == nil {
			return m.reconnectedLocked(log, m.identity, addr, "memory")
		}
		errs = errors.Join(errs, fmt.Errorf("re-derive address: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return m.reconnectFailedLocked(errors.Join(errs, err))
	}

	// (b) the persisted identity.
	if id, err := m.readPersisted(); err == nil {
		addr, err := m.opts.Derive(id)
		if err == nil {
			return m.reconnectedLocked(log, id, addr, "storage")
		}
		errs = errors.Join(errs, fmt.Errorf("reload identity: %w", err))
	} else {
		errs = errors.Join(errs, fmt.Errorf("reload identity: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return m.reconnectFailedLocked(errors.Join(errs, err))
	}

	// (c) a brand-new identity.
	id, addr, err := m.newIdentityLocked()
	if err != nil {
		return m.reconnectFailedLocked(errors.Join(errs, fmt.Errorf("regenerate identity: %w", err)))
	}
	log.Warn("session identity regenerated")
	m.identity = id
	m.readyLocked(addr)
	m.observe("ok")
	return nil
}

func (m *Manager) reconnectedLocked(log *slog.Logger, id *Identity, addr, from string) error {
	if err := m.persistLocked(id); err != nil {
		// The identity is usable, only its expiry could not be pushed back.
		log.Warn("cannot refresh persisted session timestamp", "err", err)
	}
	m.identity = id
	m.readyLocked(addr)
	log.Info("session reconnected", "from", from)
	m.observe("ok")
	return nil
}

func (m *Manager) reconnectFailedLocked(err error) error {
	m.observe("failed")
	return m.failLocked(fmt.Errorf("reconnect attempt %d/%d failed: %w", m.attempts, m.opts.MaxAttempts, err))
}

func (m *Manager) observe(outcome string) {
	if m.opts.Observer != nil {
		m.opts.Observer.Reconnect(outcome)
	}
}

// Clear forgets the identity, in memory and in storage. It also lifts the
// unrecoverable condition: the next Load generates a fresh identity.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unrecoverable = false
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	m.identity = nil
	m.address = ""
	m.attempts = 0
	m.err = nil
	m.state = Uninitialized
	return m.opts.Store.Delete(StorageKey)
}

// StoreAddress returns the address to use against the durable store,
// loading or reconnecting the identity when needed.
func (m *Manager) StoreAddress(ctx context.Context) (string, error) {
	m.mu.Lock()
	switch {
	case m.unrecoverable:
		m.mu.Unlock()
		return "", ErrUnrecoverable
	case m.state == Ready && m.address != "":
		addr := m.address
		m.mu.Unlock()
		return addr, nil
	case m.identity == nil && m.state == Uninitialized:
		err := m.loadLocked(ctx)
		addr := m.address
		m.mu.Unlock()
		return addr, err
	}
	m.mu.Unlock()

	if err := m.Reconnect(ctx); err != nil {
		return "", err
	}
	if addr := m.Address(); addr != "" {
		return addr, nil
	}
	return "", ErrNoIdentity
}
