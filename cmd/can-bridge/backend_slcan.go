package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/hub"
	"github.com/kstaniek/go-can-socket/internal/metrics"
	"github.com/kstaniek/go-can-socket/internal/slcan"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSlcanPort is a hook for tests (overridden in unit tests).
var openSlcanPort = slcan.Open

// initSlcanBackend sets up the slcan serial backend, launching the RX loop.
func initSlcanBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	sp, err := openSlcanPort(cfg.slcanDev, cfg.baud, cfg.slcanReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open slcan: %w", err)
	}
	l.Info("slcan_open", "device", cfg.slcanDev, "baud", cfg.baud)
	codec := slcan.Codec{}
	accept := rxFilterFor(cfg.canFilters)
	w := slcan.NewTXWriter(ctx, sp, codec, txQueueSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("slcan_rx_end")
		buf := make([]byte, slcanReadBufSize)
		acc := bytes.NewBuffer(nil)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				_ = codec.DecodeStream(acc, func(fr can.Frame) {
					if !accept(fr) {
						metrics.IncFiltered()
						return
					}
					h.Broadcast(fr)
				})
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					return // device removed or fatal
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // ignore transient EOF
				}
				metrics.IncError(metrics.ErrSlcanRead)
				l.Warn("slcan_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
	return w.SendFrame, func() { _ = sp.Close(); w.Close() }, nil
}
