//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/canbus"
	"github.com/kstaniek/go-can-socket/internal/hub"
	"github.com/kstaniek/go-can-socket/internal/metrics"
	"github.com/kstaniek/go-can-socket/socketcan"
)

// asyncDev adapts AsyncSocket to the canbus.Dev surface. Calls park the
// goroutine on the runtime poller instead of pinning an OS thread; Close
// unblocks a pending Recv with ErrClosed.
type asyncDev struct{ sock *socketcan.AsyncSocket }

func (d asyncDev) Send(fr can.Frame) error  { return d.sock.Send(context.Background(), fr) }
func (d asyncDev) Recv() (can.Frame, error) { return d.sock.Recv(context.Background()) }
func (d asyncDev) Close() error             { return d.sock.Close() }

// openSocketCANDevice is a hook for tests (overridden in unit tests).
// Filters are installed in the kernel so rejected frames never reach userspace.
var openSocketCANDevice = func(iface string, filters []can.Filter) (canbus.Dev, error) {
	sock, err := socketcan.BindAsync(iface)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		if ferr := sock.SetFilters(filters); ferr != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("set filters: %w", ferr)
		}
	}
	return asyncDev{sock: sock}, nil
}

// initSocketCANBackend sets up the SocketCAN backend, launching the RX loop.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	dev, err := openSocketCANDevice(cfg.canIf, cfg.canFilters)
	if err != nil {
		return nil, func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf, "filters", len(cfg.canFilters))
	tw := canbus.NewTXWriter(ctx, dev, txQueueSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			fr, err := dev.Recv()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, socketcan.ErrClosed) { // shutting down
					return
				}
				metrics.IncError(metrics.ErrSocketCANRead)
				l.Warn("socketcan_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
				continue
			}
			metrics.IncSocketCANRx()
			h.Broadcast(fr)
			backoff = rxBackoffMin
		}
	}()
	return tw.SendFrame, func() { _ = dev.Close(); tw.Close() }, nil
}
