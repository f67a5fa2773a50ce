package sheets

import (
	"context"

	"moneymanager/internal/core"
)

// LogAppender is the outbound port for the spend-log backup target.
type LogAppender interface {
	// Append writes one spend log to the backup sheet and returns a
	// reference to the written row.
	Append(ctx context.Context, s core.SpendLog) (rowRef string, err error)
}
