package domain

import "context"

// Schedular fires ticks at a fixed delay until ctx is done.
type Schedular interface {
	Run(ctx context.Context) error
}
