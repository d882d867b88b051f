// Package can models classical CAN (2.0A/2.0B) identifiers, frames and
// receive filters.
//
// It provides:
//   - Validated standard (11-bit) and extended (29-bit) identifier types and
//     an ID union that keeps the frame format consistent with the value
//   - A Frame type for data and remote transmission request (RTR) frames
//     with a zero-padded 0-8 byte payload
//   - A Filter type matching the kernel CAN_RAW filter semantics, usable
//     both for kernel installation and for pure user-space evaluation
//   - Binary (un)marshaling to the 16-byte Linux can_frame layout
//
// The package has no side effects and performs no I/O; the socketcan package
// exchanges these values with the kernel.
package can
