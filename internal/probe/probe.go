// Package probe implements listener readiness checks. The protocol on the
// probed port is opaque: readiness means a TCP connection was accepted,
// nothing is read or written on it.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

type TCPProbe struct {
	Window      time.Duration // bounded startup window
	Interval    time.Duration // delay between connect attempts
	DialTimeout time.Duration // per-attempt timeout

	log *logrus.Entry
}

func NewTCPProbe(window, interval time.Duration, log *logrus.Logger) *TCPProbe {
	if interval <= 0 {
		interval = time.Second
	}
	return &TCPProbe{
		Window:      window,
		Interval:    interval,
		DialTimeout: 2 * time.Second,
		log:         log.WithField("component", "probe"),
	}
}

// WaitReady dials addr until it accepts a connection or the startup window
// closes. The last dial error is carried in the window-closed error so an
// operator can tell a refused connection from an unroutable address.
func (p *TCPProbe) WaitReady(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Window)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if err := p.Check(ctx, addr); err == nil {
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("listener %s not ready within %s: %w", addr, p.Window, lastErr)
			}
			return fmt.Errorf("listener %s not ready within %s: %w", addr, p.Window, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Check performs a single connect attempt against addr.
func (p *TCPProbe) Check(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: p.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		p.log.WithField("addr", addr).WithError(err).Debug("probe attempt failed")
		return err
	}
	return conn.Close()
}
