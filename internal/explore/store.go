package explore

import (
	"context"
	"errors"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// Stores saves to every non-nil store in order. All stores are tried; their
// errors are joined.
func Stores(stores ...MapStore) MapStore {
	var out multiStore
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type multiStore []MapStore

func (m multiStore) SaveMap(ctx context.Context, reason string, snap arena.Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveMap(ctx, reason, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
