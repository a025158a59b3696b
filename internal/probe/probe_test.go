package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestWaitReadyImmediate(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	p := NewTCPProbe(2*time.Second, 50*time.Millisecond, testLogger())
	assert.NoError(t, p.WaitReady(context.Background(), ln.Addr().String()))
}

func TestWaitReadyLateBind(t *testing.T) {
	// Reserve an address, release it, and rebind after a delay: the probe
	// must keep retrying until the listener appears.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	go func() {
		time.Sleep(200 * time.Millisecond)
		late, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		late.Close()
	}()

	p := NewTCPProbe(3*time.Second, 50*time.Millisecond, testLogger())
	assert.NoError(t, p.WaitReady(context.Background(), addr))
}

func TestWaitReadyWindowCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewTCPProbe(300*time.Millisecond, 50*time.Millisecond, testLogger())
	err = p.WaitReady(context.Background(), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready within")
}

func TestWaitReadyCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	p := NewTCPProbe(10*time.Second, 50*time.Millisecond, testLogger())
	start := time.Now()
	err = p.WaitReady(ctx, addr)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCheckAcceptsWithoutSpeaking(t *testing.T) {
	// The probe must not write anything: the protocol on the port is opaque.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan int, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- n
		conn.Close()
	}()

	p := NewTCPProbe(time.Second, 50*time.Millisecond, testLogger())
	require.NoError(t, p.Check(context.Background(), ln.Addr().String()))
	assert.Equal(t, 0, <-received)
}
