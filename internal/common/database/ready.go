package database

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Pinger is anything with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready returns a check that pings every named dependency in name order and
// reports the first one that fails.
func Ready(deps map[string]Pinger) func(ctx context.Context) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(ctx context.Context) error {
		for _, name := range names {
			if err := deps[name].Ping(ctx); err != nil {
				return fmt.Errorf("%s not ready: %w", name, err)
			}
		}
		return nil
	}
}

// Retry calls connect until it succeeds, doubling the delay between attempts.
func Retry(ctx context.Context, attempts int, delay time.Duration, connect func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return fmt.Errorf("gave up after %d attempts: %w", i+1, ctx.Err())
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
