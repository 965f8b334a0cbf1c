// Package app runs dim under a supervisor together with its timeout.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ItsNotGoodName/dim/internal/config"
	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/shm"
	"github.com/ItsNotGoodName/dim/internal/wayland"
	"github.com/ItsNotGoodName/dim/pkg/sutureext"
	"github.com/thejerf/suture/v4"
)

var ErrInputObserved = errors.New("input observed")

const (
	ExitTimeout = 0
	ExitFailure = 1
	ExitInput   = 2
)

// ExitCode maps the result of Run to a process exit code.
func ExitCode(err error) int {
	if errors.Is(err, ErrInputObserved) {
		return ExitInput
	}
	return ExitFailure
}

// Run shows the overlay until input is observed, the context is cancelled or
// the dim service fails. The timeout, when set, exits the process on its own.
func Run(ctx context.Context, settings config.Settings) error {
	super := sutureext.NewSimple("dim")

	service := &Dim{settings: settings}
	sutureext.Add(super, service)

	if settings.Duration > 0 {
		sutureext.Add(super, NewTimeout(settings.Duration, os.Exit))
	}

	if err := super.Serve(ctx); err != nil && !errors.Is(err, suture.ErrTerminateSupervisorTree) && !errors.Is(err, context.Canceled) {
		slog.Debug("Supervisor stopped", "error", err)
	}

	if service.err == nil {
		return ctx.Err()
	}
	return service.err
}

// Dim connects to the compositor and drives the controller. It runs once,
// its outcome is kept for Run and the tree is stopped afterwards.
type Dim struct {
	settings config.Settings
	err      error
}

func (d *Dim) String() string {
	return "dim"
}

func (d *Dim) Serve(ctx context.Context) error {
	d.err = d.serve(ctx)
	return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, d.err)
}

func (d *Dim) serve(ctx context.Context) error {
	c, err := wayland.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	globals, err := c.Globals()
	if err != nil {
		return err
	}

	buffers, err := dim.SelectBufferManager(globals, allocate)
	if err != nil {
		return err
	}
	slog.Debug("Selected buffer mechanism", "kind", buffers.Kind())

	ctrl := dim.NewController(globals, buffers, dim.Options{
		Alpha:       d.settings.Alpha,
		Fade:        d.settings.Fade,
		Passthrough: d.settings.Passthrough,
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			slog.Debug("Failed to clean up", "error", err)
		}
	}()

	c.SetHandler(ctrl)
	if err := ctrl.Err(); err != nil {
		return err
	}

	err = c.Run(ctrl)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	return ErrInputObserved
}

func allocate(size int) (dim.Memory, error) {
	segment, err := shm.New("dim", size)
	if err != nil {
		return nil, err
	}
	return segment, nil
}

// NewTimeout returns a service that calls exit with ExitTimeout after d.
func NewTimeout(d time.Duration, exit func(code int)) sutureext.ServiceFunc {
	return sutureext.NewServiceFunc("timeout", func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			slog.Debug("Timeout reached", "duration", d)
			exit(ExitTimeout)
			return suture.ErrDoNotRestart
		}
	})
}
