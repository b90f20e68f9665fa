package app

import (
	"context"
	"time"
)

// Clock schedules the engine's timers. Both methods stop for good once ctx
// is cancelled; callbacks never run after that.
type Clock interface {
	Every(ctx context.Context, d time.Duration, f func())
	AfterFunc(ctx context.Context, d time.Duration, f func())
}

type realClock struct{}

func (realClock) Every(ctx context.Context, d time.Duration, f func()) {
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ctx.Err() != nil {
					return
				}
				f()
			}
		}
	}()
}

func (realClock) AfterFunc(ctx context.Context, d time.Duration, f func()) {
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			if ctx.Err() == nil {
				f()
			}
		}
	}()
}
