// Package delivery defines the entry points that expose the usecases.
package delivery

import "context"

// Delivery is a long running server started by main and stopped through fx hooks.
type Delivery interface {
	Serve(ctx context.Context) error
}
