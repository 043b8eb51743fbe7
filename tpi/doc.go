// Package tpi drives the serial programmer sketch that programs TPI devices.
//
// One programming transaction runs as:
//
//	Idle → AwaitExitHandshake → Ready → Transacting → Complete | TimedOut
//
// The engine opens the link and writes "Q\n" so that a bootloader still listening on the
// board leaves programming mode. It then waits for the sketch to announce itself with two
// consecutive ACK bytes. After the handshake it writes the command followed by '*' and
// collects the response until the sketch sends ESC.
//
// Both waits are governed by a countdown of ticks. Every received byte restarts the
// countdown; reaching zero ends the transaction in TimedOut. The link is closed when the
// transaction ends, whatever the outcome.
//
// Received bytes and ticks reach the transaction as events on one channel consumer, so the
// countdown is owned by a single goroutine.
//
// Query runs a transaction and returns the response. Send starts one and returns once the
// link is open; the returned Session reports the outcome.
package tpi
