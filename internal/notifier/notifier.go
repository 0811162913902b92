package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/genricoloni/mediagrab/internal/config"
	"github.com/genricoloni/mediagrab/internal/domain"
	"go.uber.org/zap"
)

const (
	appName  = "mediagrab"
	appIcon  = "folder-download"
	expireMs = int32(-1)
)

// DesktopNotifier sends notifications over the session bus.
// The connection is opened on first use so a missing bus only matters
// when a notification is actually sent.
type DesktopNotifier struct {
	logger  *zap.Logger
	connect func() (DBusClient, error)

	mu   sync.Mutex
	conn DBusClient
}

// NewDesktopNotifier creates a notifier that dials the session bus lazily
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		logger: logger,
		connect: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// New picks the notifier matching the configuration
func New(logger *zap.Logger, cfg *config.AppConfig) domain.Notifier {
	if !cfg.Notify {
		return NoopNotifier{}
	}
	return NewDesktopNotifier(logger)
}

// Notify posts a desktop notification
func (n *DesktopNotifier) Notify(ctx context.Context, summary, body string) error {
	conn, err := n.client()
	if err != nil {
		return err
	}

	id, err := conn.Notify(ctx, appName, appIcon, summary, body, expireMs)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Debug("Notification sent", zap.Uint32("id", id), zap.String("summary", summary))
	return nil
}

// Close releases the bus connection if one was opened
func (n *DesktopNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

func (n *DesktopNotifier) client() (DBusClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return n.conn, nil
	}

	conn, err := n.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n.conn = conn
	return conn, nil
}

// NoopNotifier discards notifications
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string) error { return nil }

func (NoopNotifier) Close() error { return nil }
