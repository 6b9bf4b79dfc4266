package remote

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"shuttle/internal/hosts"
	"shuttle/internal/logging"
	"shuttle/internal/services"
)

// sshClient is the slice of *ssh.Client the manager depends on, abstracted
// so tests can stand in a fake without a network.
type sshClient interface {
	NewSession() (*ssh.Session, error)
	Close() error
}

type dialFunc func(addr string, cfg *ssh.ClientConfig) (sshClient, error)

func sshDial(addr string, cfg *ssh.ClientConfig) (sshClient, error) {
	return ssh.Dial("tcp", addr, cfg)
}

// session is one live authenticated connection in the registry.
type session struct {
	key    string
	client sshClient
}

// Option configures the manager.
type Option func(*Manager)

// WithDialer injects a custom dialer (primarily for tests).
func WithDialer(dial func(addr string, cfg *ssh.ClientConfig) (sshClient, error)) Option {
	return func(m *Manager) {
		if dial != nil {
			m.dial = dial
		}
	}
}

// WithConnectTimeout bounds session establishment.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// Manager maintains at most one SSH session per host:port and executes
// commands over them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	dial    dialFunc
	timeout time.Duration
	logger  *slog.Logger
}

// NewManager constructs a session manager.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*session),
		dial:     sshDial,
		timeout:  15 * time.Second,
		logger:   logging.NewComponentLogger(logger, "remote"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire returns the live session for host, establishing and registering a
// new connection when none exists.
func (m *Manager) acquire(host *hosts.Host) (*session, error) {
	key := host.SessionKey()

	m.mu.Lock()
	if sess, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	cfg, err := clientConfig(host, m.timeout)
	if err != nil {
		return nil, err
	}

	client, err := m.dial(host.Endpoint(), cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConnection, "remote", "acquire", "connect to "+key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent acquire may have won the race; keep the registered
	// session so the one-per-key invariant holds.
	if existing, ok := m.sessions[key]; ok {
		_ = client.Close()
		return existing, nil
	}
	sess := &session{key: key, client: client}
	m.sessions[key] = sess
	m.logger.Debug("session established",
		logging.String(logging.FieldHost, host.ID),
		logging.String("endpoint", key))
	return sess, nil
}

// evict removes a session from the registry so the next acquire
// re-establishes it. Safe to call with an already-evicted session.
func (m *Manager) evict(sess *session) {
	m.mu.Lock()
	current, ok := m.sessions[sess.key]
	if ok && current == sess {
		delete(m.sessions, sess.key)
	}
	m.mu.Unlock()
	_ = sess.client.Close()
	m.logger.Debug("session evicted", logging.String("endpoint", sess.key))
}

// Release closes and deregisters the session for a host. Idempotent.
func (m *Manager) Release(host *hosts.Host) {
	m.mu.Lock()
	sess, ok := m.sessions[host.SessionKey()]
	if ok {
		delete(m.sessions, host.SessionKey())
	}
	m.mu.Unlock()
	if ok {
		_ = sess.client.Close()
	}
}

// ReleaseAll closes every registered session. Idempotent.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.client.Close()
	}
}

// ActiveSessions reports the registry keys currently held, for status
// output.
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	return keys
}
