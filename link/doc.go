// Package link provides the byte transport used to talk to a programmer sketch.
//
// A Link is opened with a Listener that receives every incoming byte, one at a time and
// in arrival order, on a goroutine owned by the link. Writes go straight to the device.
// A Link is an exclusively owned resource: opening an already open link fails with
// ErrAlreadyOpen, and two Ports cannot hold the same device name at once (ErrPortInUse).
//
// Port is the serial implementation on top of go.bug.st/serial. Sim is an in-memory
// link that scripts a device, used by tests and dry runs.
package link
