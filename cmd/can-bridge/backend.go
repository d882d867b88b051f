package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/hub"
)

// initBackend selects the backend, starts its RX loop and returns a frame sender and cleanup.
// It returns an error instead of exiting the process to allow graceful handling by the caller.
func initBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	switch cfg.backend {
	case "slcan":
		return initSlcanBackend(ctx, cfg, h, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, h, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use slcan|socketcan)", cfg.backend)
	}
}

// rxFilterFor builds the receive-side predicate applied to frames read from
// the CAN side before they are broadcast to TCP clients. An empty filter set
// accepts everything; otherwise a frame passes when any filter matches.
func rxFilterFor(filters []can.Filter) func(can.Frame) bool {
	if len(filters) == 0 {
		return func(can.Frame) bool { return true }
	}
	fs := make([]can.Filter, len(filters))
	copy(fs, filters)
	return func(fr can.Frame) bool {
		for _, f := range fs {
			if f.Match(fr) {
				return true
			}
		}
		return false
	}
}
