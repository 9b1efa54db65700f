// Package telegram owns the authenticated connection to a Telegram personal
// account: session credentials, the non-interactive startup path, inbound
// message events and outbound sends.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
)

// Options configures a Manager.
type Options struct {
	AppID   int
	AppHash string
	// Storage holds the session. Establish requires it to contain one.
	Storage session.Storage
	// Inbound receives incoming messages. Nil drops them.
	Inbound InboundHandler
	Logger  *slog.Logger

	// StartupTimeout bounds Establish. Zero means DefaultStartupTimeout.
	StartupTimeout time.Duration
	// ReconnectTimeout is how long the client keeps redialling after the
	// connection fails before giving up. Zero means DefaultReconnectTimeout.
	ReconnectTimeout time.Duration
}

const (
	// DefaultStartupTimeout is how long Establish waits for an authorized
	// connection.
	DefaultStartupTimeout = 30 * time.Second
	// DefaultReconnectTimeout caps the total redial time of one outage.
	DefaultReconnectTimeout = 2 * time.Minute
)

// Manager creates live connections to Telegram.
type Manager struct {
	opts   Options
	logger *slog.Logger
}

// NewManager creates a new session manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = DefaultReconnectTimeout
	}
	return &Manager{opts: opts, logger: logger.With("component", "telegram")}
}

// Establish connects using the stored session and returns once the account
// is authorized and receiving updates. It never prompts: a missing or
// revoked session yields an *AuthenticationError; a dial failure, or no
// authorized connection within StartupTimeout, a *ConnectivityError.
// Cancelling ctx stops the connection.
func (m *Manager) Establish(ctx context.Context) (*Conn, error) {
	if m.opts.Storage == nil {
		return nil, &AuthenticationError{Err: ErrSessionRequired}
	}
	if _, err := m.opts.Storage.LoadSession(ctx); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, &AuthenticationError{Err: ErrSessionRequired}
		}
		return nil, classify(fmt.Errorf("load session: %w", err))
	}

	peers := NewPeerCache()
	dispatcher := tg.NewUpdateDispatcher()
	registerInbound(dispatcher, peers, m.opts.Inbound)
	gaps := updates.New(updates.Config{Handler: dispatcher})

	client := m.newClient(m.opts.Storage, gaps)

	runCtx, cancel := context.WithCancel(ctx)
	conn := &Conn{
		sender: message.NewSender(client.API()),
		peers:  peers,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: m.logger,
	}

	ready := make(chan error, 1)
	go func() {
		defer close(conn.done)

		err := client.Run(runCtx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("check authorization: %w", err)
			}
			if !status.Authorized {
				return &AuthenticationError{Err: errors.New("session is not authorized")}
			}

			self, err := client.Self(ctx)
			if err != nil {
				return fmt.Errorf("get self: %w", err)
			}
			peers.LearnUser(self)
			conn.self.Store(self)

			conn.connected.Store(true)
			defer conn.connected.Store(false)
			ready <- nil

			m.logger.Info("Telegram connection ready", "user_id", self.ID, "username", self.Username)
			return gaps.Run(ctx, client.API(), self.ID, updates.AuthOptions{IsBot: self.Bot})
		})

		conn.connected.Store(false)
		if runCtx.Err() != nil && errors.Is(err, context.Canceled) {
			err = nil
		}
		conn.err = err
		if err != nil {
			m.logger.Warn("Telegram connection stopped", "error", err)
		}

		startupErr := err
		if startupErr == nil {
			startupErr = ErrNotReady
		}
		select {
		case ready <- classify(startupErr):
		default:
		}
	}()

	timer := time.NewTimer(m.opts.StartupTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-conn.done
			return nil, err
		}
		return conn, nil
	case <-timer.C:
		cancel()
		<-conn.done
		return nil, &ConnectivityError{Err: fmt.Errorf("no authorized connection within %s", m.opts.StartupTimeout)}
	case <-ctx.Done():
		cancel()
		<-conn.done
		return nil, ctx.Err()
	}
}

// newClient builds a gotd client whose redial loop gives up after
// ReconnectTimeout instead of retrying forever.
func (m *Manager) newClient(storage session.Storage, h telegram.UpdateHandler) *telegram.Client {
	maxElapsed := m.opts.ReconnectTimeout
	return telegram.NewClient(m.opts.AppID, m.opts.AppHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  h,
		ReconnectionBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = maxElapsed
			return b
		},
	})
}

// Conn is a live, authorized connection. It is safe for concurrent use by
// the update dispatcher and HTTP handlers.
type Conn struct {
	sender    *message.Sender
	peers     *PeerCache
	self      atomic.Pointer[tg.User]
	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	logger    *slog.Logger
}

// IsConnected reports whether the connection is authorized and running.
func (c *Conn) IsConnected() bool {
	return c != nil && c.connected.Load()
}

// Self returns the account the connection is logged in as.
func (c *Conn) Self() *tg.User {
	return c.self.Load()
}

// Peers returns the cache of chats seen since startup.
func (c *Conn) Peers() *PeerCache {
	return c.peers
}

// SendText sends a text message. chatID may be a username (with or without
// "@", or a t.me link), a phone number starting with "+", or a marked
// numeric chat id seen since startup.
func (c *Conn) SendText(ctx context.Context, chatID, text string) error {
	if !c.IsConnected() {
		return ErrNotReady
	}

	t, err := parseTarget(chatID)
	if err != nil {
		return err
	}

	var b *message.RequestBuilder
	switch t.kind {
	case targetPhone:
		b = c.sender.ResolvePhone(t.phone)
	case targetID:
		p, ok := c.peers.Lookup(t.id)
		if !ok {
			return fmt.Errorf("%w (%d)", ErrPeerNotFound, t.id)
		}
		b = c.sender.To(p)
	default:
		b = c.sender.Resolve(t.username)
	}

	if _, err := b.Text(ctx, text); err != nil {
		return fmt.Errorf("send message to %s: %w", chatID, err)
	}
	return nil
}

// Done is closed when the connection's run loop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the connection stops and returns the reason. A
// connection stopped through Close or context cancellation returns nil.
func (c *Conn) Wait() error {
	<-c.done
	return c.err
}

// Close stops the connection and waits for the run loop to exit.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}
