package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/canbus"
	"github.com/kstaniek/go-can-socket/internal/hub"
	"github.com/kstaniek/go-can-socket/internal/metrics"
	"github.com/kstaniek/go-can-socket/internal/slcan"
)

func isOverflow(err error) bool {
	return errors.Is(err, slcan.ErrTxOverflow) || errors.Is(err, canbus.ErrTxOverflow)
}

// forward pushes one client frame to the backend, applying the filter and
// classifying overflow vs hard errors.
func (s *Server) forward(fr can.Frame, logger *slog.Logger) {
	if s.frameFilter != nil && !s.frameFilter(fr) {
		metrics.IncFiltered()
		return
	}
	metrics.IncTCPRx()
	if err := s.Send(fr); err != nil {
		if isOverflow(err) {
			s.totalBackendOverflow.Add(1)
			logger.Debug("backend_overflow_drop", "id", fr.ID().String(), "len", fr.Len())
		} else {
			wrap := fmt.Errorf("%w: %v", ErrBackendTx, err)
			s.setError(wrap)
			s.totalBackendErrors.Add(1)
			logger.Error("backend_tx_error", "error", wrap, "id", fr.ID().String())
		}
	}
}

func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			var count int
			if mfd, ok := s.Codec.(interface {
				DecodeN(io.Reader, int, func(can.Frame)) (int, error)
			}); ok {
				var err error
				count, err = mfd.DecodeN(conn, 16, func(fr can.Frame) {
					s.forward(fr, logger)
				})
				if err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
						return
					}
					if ne, ok := err.(net.Error); ok && ne.Timeout() {
						continue
					}
					wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
					metrics.IncError(mapErrToMetric(wrap))
					s.setError(wrap)
					return
				}
			} else {
				fr, err := s.Codec.Decode(conn)
				if err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
						return
					}
					if ne, ok := err.(net.Error); ok && ne.Timeout() {
						continue
					}
					wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
					metrics.IncError(mapErrToMetric(wrap))
					s.setError(wrap)
					return
				}
				s.forward(fr, logger)
				count = 1
			}
			if count == 0 {
				time.Sleep(100 * time.Microsecond)
			}
			select {
			case <-ctxDone:
				return
			default:
			}
		}
	}()
}
