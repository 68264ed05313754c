// Package openrgb implements a client for the OpenRGB SDK server's TCP
// protocol, enough of it to enumerate devices, switch them to direct
// control and stream per-LED colors.
package openrgb

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

const ioTimeout = 5 * time.Second

// Device is one controller as seen by the render path.
type Device struct {
	ID       int
	Name     string
	Type     string
	LEDs     int
	Excluded bool
	BGR      bool
}

// Client talks to one OpenRGB SDK server. All methods are safe for
// concurrent use; the protocol itself is strictly request/response.
type Client struct {
	cfg    config.OpenRGBConfig
	logger *zap.Logger

	mu       sync.Mutex
	conn     net.Conn
	protocol uint32
	ctrls    []*controller
	devices  []Device
}

// New creates a client. Connect must be called before any device call.
func New(cfg config.OpenRGBConfig, logger *zap.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the SDK server, retrying per the configured retry count
// and delay, then negotiates the protocol version, registers the client
// name and loads the device list.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	attempts := c.cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ConnectDelay.Duration):
			}
		}
		d := net.Dialer{Timeout: ioTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			c.logger.Warn("openrgb connect failed",
				zap.String("addr", addr), zap.Int("attempt", i+1), zap.Error(err))
			continue
		}
		c.conn = conn
		if err := c.handshakeLocked(); err != nil {
			conn.Close()
			c.conn = nil
			lastErr = err
			continue
		}
		c.logger.Info("connected to openrgb",
			zap.String("addr", addr),
			zap.Uint32("protocol", c.protocol),
			zap.Int("devices", len(c.devices)))
		return nil
	}
	return fmt.Errorf("openrgb server at %s unreachable: %w", addr, lastErr)
}

func (c *Client) handshakeLocked() error {
	// Version negotiation: both sides send theirs, the lower wins.
	ours := appendU32(nil, clientProtocolVersion)
	payload, err := c.requestLocked(0, pktRequestProtocolVersion, ours)
	if err != nil {
		return fmt.Errorf("protocol version: %w", err)
	}
	if len(payload) < 4 {
		return fmt.Errorf("short protocol version reply")
	}
	server := uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
	c.protocol = clientProtocolVersion
	if server < c.protocol {
		c.protocol = server
	}

	name := c.cfg.ClientName
	if name == "" {
		name = "SpotifySync"
	}
	if err := c.sendLocked(0, pktSetClientName, append([]byte(name), 0)); err != nil {
		return fmt.Errorf("set client name: %w", err)
	}

	return c.loadDevicesLocked()
}

func (c *Client) loadDevicesLocked() error {
	payload, err := c.requestLocked(0, pktRequestControllerCount, nil)
	if err != nil {
		return fmt.Errorf("controller count: %w", err)
	}
	if len(payload) < 4 {
		return fmt.Errorf("short controller count reply")
	}
	count := int(uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24)

	c.ctrls = c.ctrls[:0]
	c.devices = c.devices[:0]
	for id := 0; id < count; id++ {
		var req []byte
		if c.protocol >= 1 {
			req = appendU32(nil, c.protocol)
		}
		data, err := c.requestLocked(uint32(id), pktRequestControllerData, req)
		if err != nil {
			return fmt.Errorf("controller %d data: %w", id, err)
		}
		ctrl, err := parseController(data, c.protocol)
		if err != nil {
			return fmt.Errorf("controller %d: %w", id, err)
		}
		c.ctrls = append(c.ctrls, ctrl)
		c.devices = append(c.devices, Device{
			ID:       id,
			Name:     ctrl.Name,
			Type:     deviceTypeName(ctrl.Type),
			LEDs:     ctrl.LEDCount,
			Excluded: matchesAny(ctrl.Name, c.cfg.ExcludedDevices),
			BGR:      matchesAny(ctrl.Name, c.cfg.BGRDevices),
		})
	}
	return nil
}

// matchesAny reports whether name contains any pattern, case-insensitive.
func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Devices returns a copy of the enumerated device list.
func (c *Client) Devices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// SetDirect switches every non-excluded device into its custom
// (software-controlled) mode.
func (c *Client) SetDirect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.devices {
		if d.Excluded {
			continue
		}
		if err := c.sendLocked(uint32(d.ID), pktSetCustomMode, nil); err != nil {
			return fmt.Errorf("set custom mode on %q: %w", d.Name, err)
		}
	}
	return nil
}

// SetBreathing switches non-excluded devices into their hardware breathing
// mode with the given color, where the device offers one. Devices without
// a breathing mode are left alone.
func (c *Client) SetBreathing(color models.RGB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.devices {
		if d.Excluded {
			continue
		}
		idx, m, ok := findMode(c.ctrls[i].Modes, "breath")
		if !ok {
			c.logger.Debug("device has no breathing mode", zap.String("device", d.Name))
			continue
		}
		col := color
		if d.BGR {
			col = models.RGB{R: col.B, G: col.G, B: col.R}
		}
		if len(m.Colors) > 0 {
			m.Colors[0] = encodeColor(col)
			if m.ColorMode == 0 {
				m.ColorMode = 1 // per-mode color
			}
		}
		payload := encodeUpdateMode(idx, m, c.protocol)
		if err := c.sendLocked(uint32(d.ID), pktUpdateMode, payload); err != nil {
			return fmt.Errorf("set breathing on %q: %w", d.Name, err)
		}
	}
	return nil
}

func findMode(modes []mode, substr string) (int, mode, bool) {
	for i, m := range modes {
		if strings.Contains(strings.ToLower(m.Name), substr) {
			return i, m, true
		}
	}
	return 0, mode{}, false
}

// UpdateDevice streams a full frame to one device, swapping channels for
// BGR hardware. A write failure triggers one transparent reconnect.
func (c *Client) UpdateDevice(ctx context.Context, id int, colors []models.RGB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < 0 || id >= len(c.devices) {
		return fmt.Errorf("unknown device id %d", id)
	}
	d := c.devices[id]
	if d.Excluded {
		return nil
	}

	frame := colors
	if d.BGR {
		frame = make([]models.RGB, len(colors))
		for i, col := range colors {
			frame[i] = models.RGB{R: col.B, G: col.G, B: col.R}
		}
	}

	payload := encodeUpdateLEDs(frame)
	err := c.sendLocked(uint32(id), pktUpdateLEDs, payload)
	if err == nil {
		return nil
	}

	c.logger.Warn("openrgb write failed, reconnecting", zap.Error(err))
	c.closeLocked()
	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	if id >= len(c.devices) {
		return fmt.Errorf("device %d gone after reconnect", id)
	}
	return c.sendLocked(uint32(id), pktUpdateLEDs, payload)
}

// Close disconnects from the server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) sendLocked(deviceID, packetID uint32, payload []byte) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	buf := append(encodeHeader(deviceID, packetID, uint32(len(payload))), payload...)
	_, err := c.conn.Write(buf)
	return err
}

// requestLocked sends a packet and reads replies until one with the same
// packet id arrives. Unsolicited packets (device list updates) are skipped.
func (c *Client) requestLocked(deviceID, packetID uint32, payload []byte) ([]byte, error) {
	if err := c.sendLocked(deviceID, packetID, payload); err != nil {
		return nil, err
	}
	for {
		c.conn.SetReadDeadline(time.Now().Add(ioTimeout))
		var hdr [headerSize]byte
		if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
			return nil, err
		}
		h, err := decodeHeader(hdr[:])
		if err != nil {
			return nil, err
		}
		body := make([]byte, h.length)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return nil, err
		}
		if h.packetID == packetID {
			return body, nil
		}
		if h.packetID == pktDeviceListUpdated {
			c.logger.Debug("device list changed on server")
			continue
		}
		c.logger.Debug("skipping unexpected packet", zap.Uint32("packet_id", h.packetID))
	}
}
