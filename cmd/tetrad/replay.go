package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/tetrad/internal/dispatcher"
	"github.com/OCAP2/tetrad/internal/host"
	"github.com/OCAP2/tetrad/internal/storage"
)

// replay drives one session through the dispatcher from a capture. When
// realtime is set, ticks are spaced by their model time. A cancelled ctx
// ends the replay with a clean stop.
func replay(ctx context.Context, d *dispatcher.Dispatcher, c *host.Capture, realtime bool) error {
	if _, err := d.Call(cmdStart); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	var prev float64
	first := true
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		ok, err := c.Next()
		if err != nil {
			_, _ = d.Call(cmdStop)
			return err
		}
		if !ok {
			break
		}

		if realtime {
			sim, err := c.ModelTime()
			if err == nil {
				if !first && sim > prev {
					if !sleep(ctx, time.Duration((sim-prev)*float64(time.Second))) {
						break loop
					}
				}
				prev, first = sim, false
			}
		}

		if _, err := d.Call(cmdFrame); err != nil {
			return err
		}
	}

	_, err := d.Call(cmdStop)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// dump writes a recorded stream to w as plain CSV.
func dump(path string, w io.Writer) error {
	rows, err := storage.ReadRows(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}
