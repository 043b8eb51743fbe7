package isp

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/logger"
)

var (
	// ErrFuseWrite matches every *FuseWriteError.
	ErrFuseWrite = errors.New("isp: fuse write failed")
	// ErrEditCanceled is returned by Edit when the edit function declines to continue.
	ErrEditCanceled = errors.New("isp: fuse edit canceled")
)

// FuseProgrammer reads and writes device fuses.
type FuseProgrammer interface {
	ReadFuses(ctx context.Context) (Fuses, error)
	WriteFuse(ctx context.Context, fuse chip.FuseByte, value byte) error
}

// FuseWriteError reports the fuse byte whose write failed.
type FuseWriteError struct {
	Fuse  chip.FuseByte
	Value byte
	Err   error
}

func (e *FuseWriteError) Error() string {
	return fmt.Sprintf("isp: write %s 0x%02X: %v", e.Fuse, e.Value, e.Err)
}

func (e *FuseWriteError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFuseWrite) true for every FuseWriteError.
func (e *FuseWriteError) Is(target error) bool {
	return target == ErrFuseWrite
}

// FuseResult is the outcome for one fuse byte.
type FuseResult struct {
	Fuse    chip.FuseByte
	Current byte
	Target  byte
	Written bool
}

// String returns the line reported to the user.
func (r FuseResult) String() string {
	if !r.Written {
		return fmt.Sprintf("Fuse %s already set correctly, so left unchanged", r.Fuse)
	}

	return fmt.Sprintf("Fuse %s changed from 0x%02X to 0x%02X", r.Fuse, r.Current, r.Target)
}

// Report lists what Sync did, in write order. After a failed write it holds the bytes
// handled before the failure.
type Report struct {
	Current Fuses
	Target  Fuses
	Results []FuseResult
}

// Written returns the fuse bytes that were written.
func (r *Report) Written() []chip.FuseByte {
	return r.filter(true)
}

// Unchanged returns the fuse bytes that already held their target value.
func (r *Report) Unchanged() []chip.FuseByte {
	return r.filter(false)
}

// Lines returns one user facing line per handled fuse byte.
func (r *Report) Lines() []string {
	lines := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		lines = append(lines, res.String())
	}

	return lines
}

func (r *Report) filter(written bool) []chip.FuseByte {
	var out []chip.FuseByte
	for _, res := range r.Results {
		if res.Written == written {
			out = append(out, res.Fuse)
		}
	}

	return out
}

// Sync brings the device fuses to target, writing only the bytes that differ.
func Sync(ctx context.Context, prog FuseProgrammer, target Fuses) (*Report, error) {
	current, err := prog.ReadFuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("isp: read fuses: %w", err)
	}

	return syncFrom(ctx, prog, current, target)
}

// Edit reads the fuses and passes them to edit, which returns the wanted values and whether
// to go on. The device is then brought to the edited values as Sync does.
func Edit(ctx context.Context, prog FuseProgrammer, edit func(current Fuses) (Fuses, bool)) (*Report, error) {
	current, err := prog.ReadFuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("isp: read fuses: %w", err)
	}

	target, ok := edit(current)
	if !ok {
		return nil, ErrEditCanceled
	}

	return syncFrom(ctx, prog, current, target)
}

func syncFrom(ctx context.Context, prog FuseProgrammer, current, target Fuses) (*Report, error) {
	report := &Report{Current: current, Target: target}

	for _, fb := range fuseOrder {
		res := FuseResult{Fuse: fb, Current: current.Get(fb), Target: target.Get(fb)}

		if res.Current == res.Target {
			logger.Info("fuse already set correctly", "fuse", fb.String(), "value", res.Current)
			report.Results = append(report.Results, res)

			continue
		}

		if err := ctx.Err(); err != nil {
			return report, &FuseWriteError{Fuse: fb, Value: res.Target, Err: err}
		}
		if err := prog.WriteFuse(ctx, fb, res.Target); err != nil {
			logger.Error("fuse write failed", "fuse", fb.String(), "value", res.Target, "error", err)
			return report, &FuseWriteError{Fuse: fb, Value: res.Target, Err: err}
		}

		logger.Info("fuse written", "fuse", fb.String(), "from", res.Current, "to", res.Target)
		res.Written = true
		report.Results = append(report.Results, res)
	}

	return report, nil
}
