package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/hub"
	"github.com/kstaniek/go-can-socket/internal/metrics"
	"github.com/kstaniek/go-can-socket/internal/slcan"
)

// blockingPort simulates a very slow serial port to force TX queue overflow.
type blockingPort struct{ block chan struct{} }

func (p *blockingPort) Read(b []byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	return 0, io.EOF
}
func (p *blockingPort) Write(b []byte) (int, error) { <-p.block; return len(b), nil }
func (p *blockingPort) Close() error                { close(p.block); return nil }

func TestSlcanBackendTxOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bp := &blockingPort{block: make(chan struct{})}
	openSlcanPort = func(name string, baud int, to time.Duration) (slcan.Port, error) { return bp, nil }
	defer func() { openSlcanPort = slcan.Open }()
	beforeErrs := metrics.Snap().Errors

	h := hub.New()
	cfg := &appConfig{backend: "slcan", slcanDev: "fake", baud: 115200, slcanReadTO: 10 * time.Millisecond}
	var wg sync.WaitGroup
	send, cleanup, err := initSlcanBackend(ctx, cfg, h, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSlcanBackend: %v", err)
	}
	defer cleanup()

	// Fill buffer; first frame enqueues and worker blocks on Write (channel empty since Write blocks).
	var overflowErr error
	for i := 0; i < txQueueSize+2; i++ {
		fr := can.MustFrame(can.MustID(uint32(i)%0x7FF), nil)
		err := send(fr)
		if err != nil && overflowErr == nil {
			overflowErr = err
		}
	}
	if overflowErr == nil {
		t.Fatalf("expected at least one overflow error")
	}
	if !errors.Is(overflowErr, slcan.ErrTxOverflow) {
		t.Fatalf("expected ErrTxOverflow, got %v", overflowErr)
	}
	afterErrs := metrics.Snap().Errors
	if afterErrs == beforeErrs {
		t.Fatalf("expected error metric increment on overflow")
	}
}
