package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Sleeper pauses a script. Implementations return ctx.Err() when the pause
// is cut short.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// NewSleeper renders pauses as a progress bar when out is a terminal and
// as log lines otherwise.
func NewSleeper(l log.Logger, out *os.File) Sleeper {
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return &ProgressSleeper{Out: out}
	}
	return &LogSleeper{Log: l}
}

type LogSleeper struct {
	Log log.Logger
}

func (s *LogSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.Log.Info("Pausing", "duration", d)
	return sleepCtx(ctx, d)
}

// ProgressSleeper draws a progress bar that fills up over the pause.
type ProgressSleeper struct {
	Out io.Writer
}

const progressStep = 100 * time.Millisecond

func (s *ProgressSleeper) Sleep(ctx context.Context, d time.Duration) error {
	steps := int(d / progressStep)
	if steps == 0 {
		return sleepCtx(ctx, d)
	}
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(s.Out),
		progressbar.OptionSetDescription(fmt.Sprintf("pausing %s", d)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	defer func() {
		_ = bar.Finish()
	}()

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(progressStep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
