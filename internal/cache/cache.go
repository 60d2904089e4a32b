package cache

import (
	"context"

	"github.com/emrgen/knowledge/internal/linker"
)

// GraphCache caches the link graph payload of an organization. Every invalidation advances the
// organization's generation; a payload is only written back under the generation that was current
// before it was read from the database.
type GraphCache interface {
	// GetGraph returns the cached payload; ok is false on a miss.
	GetGraph(ctx context.Context, organizationID string) (entries []linker.LinkedEntry, ok bool, err error)
	// Generation returns the current generation of the organization.
	Generation(ctx context.Context, organizationID string) (int64, error)
	// SetGraph caches the payload unless the generation moved on. It reports whether it was written.
	SetGraph(ctx context.Context, organizationID string, generation int64, entries []linker.LinkedEntry) (bool, error)
	// InvalidateGraph drops the cached payload and advances the generation.
	InvalidateGraph(ctx context.Context, organizationID string) error
}

var _ GraphCache = Nop{}

// Nop never caches.
type Nop struct{}

func NewNop() Nop {
	return Nop{}
}

func (Nop) GetGraph(context.Context, string) ([]linker.LinkedEntry, bool, error) {
	return nil, false, nil
}

func (Nop) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (Nop) SetGraph(context.Context, string, int64, []linker.LinkedEntry) (bool, error) {
	return false, nil
}

func (Nop) InvalidateGraph(context.Context, string) error {
	return nil
}
