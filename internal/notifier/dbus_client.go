package notifier

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notificationsIface = "org.freedesktop.Notifications.Notify"
)

// DBusClient defines the D-Bus operations the notifier needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/mediagrab/internal/notifier DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Notify posts a notification and returns the server-assigned id.
	// expireMs of -1 lets the notification server decide.
	Notify(ctx context.Context, appName, icon, summary, body string, expireMs int32) (uint32, error)
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// Notify calls org.freedesktop.Notifications.Notify
func (c *StdDBusClient) Notify(ctx context.Context, appName, icon, summary, body string, expireMs int32) (uint32, error) {
	obj := c.conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath))
	call := obj.CallWithContext(ctx, notificationsIface, 0,
		appName,
		uint32(0), // replaces_id
		icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expireMs)

	var id uint32
	err := call.Store(&id)
	return id, err
}
