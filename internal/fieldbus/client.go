// internal/fieldbus/client.go
package fieldbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client is a single Modbus connection (TCP or RTU) shared by every device
// on the same endpoint. It serializes requests because it mutates SlaveId
// (and, over TCP, Timeout) per call.
type Client struct {
	mu       sync.Mutex
	endpoint string
	conn     io.Closer
	client   modbus.Client

	setUnit    func(uint8)
	setTimeout func(time.Duration) // nil when the transport fixes it at Connect
	timeout    time.Duration
}

// Config is the transport config for one endpoint.
type Config struct {
	Mode     string // "tcp" (default) or "rtu"
	Endpoint string // host:port for tcp, device path for rtu
	Timeout  time.Duration

	// RTU only
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// New creates a connected client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("fieldbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	c := &Client{endpoint: cfg.Endpoint, timeout: cfg.Timeout}

	switch cfg.Mode {
	case "", "tcp":
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("fieldbus: connect %s: %w", cfg.Endpoint, err)
		}
		c.conn = h
		c.client = modbus.NewClient(h)
		c.setUnit = func(u uint8) { h.SlaveId = u }
		c.setTimeout = func(d time.Duration) { h.Timeout = d }

	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.Endpoint)
		h.BaudRate = cfg.BaudRate
		h.DataBits = cfg.DataBits
		h.StopBits = cfg.StopBits
		h.Parity = cfg.Parity
		h.Timeout = cfg.Timeout
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("fieldbus: open %s: %w", cfg.Endpoint, err)
		}
		// The serial port takes Timeout once at Connect; RTU calls are
		// bounded by cfg.Timeout, not by the caller's deadline.
		c.conn = h
		c.client = modbus.NewClient(h)
		c.setUnit = func(u uint8) { h.SlaveId = u }

	default:
		return nil, fmt.Errorf("fieldbus: unsupported mode %q", cfg.Mode)
	}

	return c, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// begin locks the client and applies the unit id and, where the transport
// allows it, a timeout no longer than the time left on ctx. The caller must
// unlock.
func (c *Client) begin(ctx context.Context, unitID uint8) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		left := time.Until(dl)
		if left <= 0 {
			c.mu.Unlock()
			return context.DeadlineExceeded
		}
		if left < timeout {
			timeout = left
		}
	}
	c.setUnit(unitID)
	if c.setTimeout != nil {
		c.setTimeout(timeout)
	}
	return nil
}

// finish maps a transport error after ctx expired onto the ctx error.
func finish(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// ReadInputRegisters reads FC 4.
func (c *Client) ReadInputRegisters(ctx context.Context, unitID uint8, addr, qty uint16) ([]uint16, error) {
	if err := c.begin(ctx, unitID); err != nil {
		return nil, err
	}
	raw, err := c.client.ReadInputRegisters(addr, qty)
	c.mu.Unlock()

	if err != nil {
		return nil, finish(ctx, err)
	}
	if len(raw) < int(qty)*2 {
		return nil, fmt.Errorf("fieldbus: short read-registers payload: got=%d want=%d", len(raw), int(qty)*2)
	}
	return unpackRegisters(raw), nil
}

// ReadDiscreteInputs reads FC 2.
func (c *Client) ReadDiscreteInputs(ctx context.Context, unitID uint8, addr, qty uint16) ([]bool, error) {
	if err := c.begin(ctx, unitID); err != nil {
		return nil, err
	}
	raw, err := c.client.ReadDiscreteInputs(addr, qty)
	c.mu.Unlock()

	if err != nil {
		return nil, finish(ctx, err)
	}
	return unpackBits(raw, int(qty)), nil
}

// WriteSingleCoil writes FC 5.
func (c *Client) WriteSingleCoil(ctx context.Context, unitID uint8, addr uint16, on bool) error {
	if err := c.begin(ctx, unitID); err != nil {
		return err
	}
	var v uint16
	if on {
		v = 0xFF00
	}
	_, err := c.client.WriteSingleCoil(addr, v)
	c.mu.Unlock()

	return finish(ctx, err)
}

// WriteRegisters writes FC 16.
func (c *Client) WriteRegisters(ctx context.Context, unitID uint8, addr uint16, regs []uint16) error {
	if err := c.begin(ctx, unitID); err != nil {
		return err
	}
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	c.mu.Unlock()

	return finish(ctx, err)
}

// ---- helpers (pure geometry) ----

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			continue
		}
		out[i] = data[byteIdx]&(1<<uint(i%8)) != 0
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
