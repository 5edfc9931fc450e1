package ports

import (
	"context"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// WorldModel is the store skills read and write through their backend.
type WorldModel interface {
	domain.Backend

	// Keys lists the stored keys in ascending order.
	Keys(ctx context.Context) ([]string, error)
}

// ProgressPublisher forwards progress events to remote observers.
type ProgressPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}
