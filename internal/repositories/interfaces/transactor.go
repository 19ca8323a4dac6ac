package interfaces

import "context"

// Transactor runs fn as one atomic unit. Repository calls inside fn must use
// the context it receives.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
