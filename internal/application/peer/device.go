package peer

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
)

// Device reads properties of one paired device.
type Device struct {
	conn     ports.BusConnection
	deviceID string
}

// NewDevice returns the device proxy for deviceID.
func NewDevice(conn ports.BusConnection, deviceID string) *Device {
	return &Device{conn: conn, deviceID: deviceID}
}

func (d *Device) property(ctx context.Context, name string) (any, error) {
	body, err := d.conn.Call(ctx, bus.Call{
		Destination: bus.Destination,
		Path:        bus.DevicePath(d.deviceID),
		Interface:   bus.InterfaceProperties,
		Method:      "Get",
		Args:        []any{bus.InterfaceDevice, name},
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("get %s: empty reply", name)
	}
	return body[0], nil
}

// Name returns the device's display name.
func (d *Device) Name(ctx context.Context) (string, error) {
	v, err := d.property(ctx, "name")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("name: unexpected type %T", v)
	}
	return s, nil
}

// Reachable reports whether the device is currently connected.
func (d *Device) Reachable(ctx context.Context) (bool, error) {
	v, err := d.property(ctx, "isReachable")
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("isReachable: unexpected type %T", v)
	}
	return b, nil
}

// Daemon is the KDE Connect daemon object.
type Daemon struct {
	conn ports.BusConnection
}

// NewDaemon returns the daemon proxy.
func NewDaemon(conn ports.BusConnection) *Daemon {
	return &Daemon{conn: conn}
}

// Devices lists device ids, optionally only reachable or only paired ones.
func (d *Daemon) Devices(ctx context.Context, onlyReachable, onlyPaired bool) ([]string, error) {
	body, err := d.conn.Call(ctx, bus.Call{
		Destination: bus.Destination,
		Path:        bus.BasePath,
		Interface:   bus.InterfaceDaemon,
		Method:      "devices",
		Args:        []any{onlyReachable, onlyPaired},
	})
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	items, ok := body[0].([]any)
	if !ok {
		return nil, fmt.Errorf("devices: unexpected type %T", body[0])
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
