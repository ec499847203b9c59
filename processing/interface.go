package processing

import (
	"context"

	"github.com/sfas-observations/floodload/floodmap"
)

// Target is a sink for the flood tables. Writes between Begin and Commit
// form one transaction. A failed WriteDepthClass or WriteRow leaves the
// transaction usable for the next write.
type Target interface {
	EnsureTable(ctx context.Context, table floodmap.Table) error
	Begin(ctx context.Context) error
	WriteDepthClass(ctx context.Context, dc floodmap.DepthClass) error
	WriteRow(ctx context.Context, row floodmap.Row) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}
