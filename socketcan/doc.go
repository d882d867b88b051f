// Package socketcan exchanges CAN frames with the Linux SocketCAN subsystem
// over raw CAN sockets.
//
// Two transports share the can package frame model and only differ in
// blocking discipline:
//
//   - Socket performs blocking send and receive calls, intended for use from
//     dedicated goroutines or threads.
//   - AsyncSocket owns a non-blocking handle registered with the Go runtime
//     poller; its operations suspend the calling goroutine until readiness,
//     honor context cancellation and deadlines, and offer immediate Try
//     variants.
//
// Both transports expose the same typed option surface (loopback,
// receive-own-messages, receive filters) over the untyped kernel socket
// option mechanism. Each socket owns exactly one kernel handle; the handle
// is released by Close and every operation afterwards fails with ErrClosed.
//
// The transports are Linux-only.
package socketcan
