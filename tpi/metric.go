package tpi

import "sync/atomic"

// EngineMetrics contains atomic counters of an Engine.
type EngineMetrics struct {
	// TransactionCount is the number of transactions started.
	TransactionCount atomic.Uint64
	// CompleteCount is the number of transactions ended by ESC.
	CompleteCount atomic.Uint64
	// HandshakeTimeoutCount is the number of transactions that never saw ACK ACK.
	HandshakeTimeoutCount atomic.Uint64
	// ResponseTimeoutCount is the number of responses not terminated in time.
	ResponseTimeoutCount atomic.Uint64
	// HandshakeResetCount is the number of non-ACK bytes that reset the handshake.
	HandshakeResetCount atomic.Uint64
	// BytesSent is the number of bytes written to the link.
	BytesSent atomic.Uint64
	// BytesRecv is the number of bytes received from the link.
	BytesRecv atomic.Uint64
}

func (m *EngineMetrics) incTransactionCount() {
	m.TransactionCount.Add(1)
}

func (m *EngineMetrics) incCompleteCount() {
	m.CompleteCount.Add(1)
}

func (m *EngineMetrics) incHandshakeTimeoutCount() {
	m.HandshakeTimeoutCount.Add(1)
}

func (m *EngineMetrics) incResponseTimeoutCount() {
	m.ResponseTimeoutCount.Add(1)
}

func (m *EngineMetrics) incHandshakeResetCount() {
	m.HandshakeResetCount.Add(1)
}

func (m *EngineMetrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n))
}

func (m *EngineMetrics) incBytesRecv() {
	m.BytesRecv.Add(1)
}
