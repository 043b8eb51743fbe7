package tpi

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-tinyprog/link"
	"github.com/arloliu/go-tinyprog/logger"
)

// Engine runs programming transactions over a Link, one at a time.
type Engine struct {
	link    link.Link
	cfg     *Config
	logger  logger.Logger
	busy    atomic.Bool
	metrics EngineMetrics
}

// NewEngine creates an engine for l. The link must be closed; the engine opens it for every
// transaction.
func NewEngine(l link.Link, cfg *Config) (*Engine, error) {
	if l == nil {
		return nil, errors.New("tpi: nil link")
	}
	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	return &Engine{
		link:   l,
		cfg:    cfg,
		logger: cfg.GetLogger().With("link", l.Name()),
	}, nil
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *EngineMetrics {
	return &e.metrics
}

// Busy reports whether a transaction is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Query runs cmd and blocks until the transaction ends.
func (e *Engine) Query(cmd string) (string, error) {
	s, err := e.Send(cmd)
	if err != nil {
		return "", err
	}

	return s.Wait()
}

// Send opens the link and runs cmd in the background.
//
// It fails with ErrLinkBusy when a transaction is already running on this engine or the
// link is held open by someone else.
func (e *Engine) Send(cmd string) (*Session, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrLinkBusy
	}

	s := newSession(cmd, e.cfg.EventQueueSize())
	if err := e.link.Open(s.receive); err != nil {
		e.busy.Store(false)
		if errors.Is(err, link.ErrAlreadyOpen) || errors.Is(err, link.ErrPortInUse) {
			return nil, fmt.Errorf("%w: %w", ErrLinkBusy, err)
		}

		return nil, fmt.Errorf("tpi: open link: %w", err)
	}

	e.metrics.incTransactionCount()
	go e.run(s)

	return s, nil
}

func (e *Engine) run(s *Session) {
	var (
		rsp []byte
		err error
	)

	defer func() {
		close(s.stop)
		if cerr := e.link.Close(); cerr != nil {
			e.logger.Warn("close link failed", "error", cerr)
		}
		e.busy.Store(false)

		s.rsp, s.err = string(rsp), err
		close(s.done)
	}()

	if err = e.write(ExitCommand); err != nil {
		e.setState(s, TimedOut)
		return
	}
	e.setState(s, AwaitExitHandshake)

	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()

	countdown := e.cfg.TimeoutTicks()
	acks := 0

	for {
		select {
		case b := <-s.events:
			e.metrics.incBytesRecv()
			e.trace(b)

			switch s.State() {
			case AwaitExitHandshake:
				countdown = e.cfg.TimeoutTicks()
				if b != ACK {
					if acks > 0 {
						e.metrics.incHandshakeResetCount()
					}
					acks = 0

					continue
				}

				acks++
				if acks < 2 {
					continue
				}

				e.setState(s, Ready)
				if err = e.write(s.cmd + string(Terminator)); err != nil {
					e.setState(s, TimedOut)
					return
				}
				e.setState(s, Transacting)
				countdown = e.cfg.TimeoutTicks()

			case Transacting:
				if b == ESC {
					e.setState(s, Complete)
					e.metrics.incCompleteCount()

					return
				}
				rsp = append(rsp, b)
				countdown = e.cfg.TimeoutTicks()
			}

		case <-ticker.C:
			countdown--
			if countdown > 0 {
				continue
			}

			if s.State() == AwaitExitHandshake {
				err = fmt.Errorf("%w after %v", ErrHandshakeTimeout, e.cfg.Timeout())
				e.metrics.incHandshakeTimeoutCount()
			} else {
				err = fmt.Errorf("%w after %v", ErrResponseTimeout, e.cfg.Timeout())
				e.metrics.incResponseTimeoutCount()
			}
			e.logger.Warn("transaction timed out", "state", s.State().String(), "received", len(rsp))
			e.setState(s, TimedOut)

			return
		}
	}
}

func (e *Engine) setState(s *Session, to State) {
	from := State(s.state.Swap(uint32(to)))
	e.logger.Debug("state changed", "from", from.String(), "to", to.String())

	if h := e.cfg.stateHandler; h != nil {
		h(from, to)
	}
}

func (e *Engine) write(str string) error {
	n, err := e.link.Write([]byte(str))
	e.metrics.addBytesSent(n)
	if err != nil {
		return fmt.Errorf("tpi: write: %w", err)
	}
	e.logger.Debug("sent", "bytes", n)

	return nil
}

// trace mirrors printable ASCII and line feed.
func (e *Engine) trace(b byte) {
	if e.cfg.trace == nil {
		return
	}
	if b == '\n' || (b >= 0x20 && b <= 0x7E) {
		_, _ = e.cfg.trace.Write([]byte{b})
	}
}
