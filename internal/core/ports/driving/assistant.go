package driving

import (
	"context"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

// Assistant answers natural-language questions about ingested datasets.
type Assistant interface {
	// Ask runs one full query turn: classification, dispatch,
	// generation and guardrail validation. Turns within one session are
	// strictly sequential. A *domain.AllProvidersFailedError is
	// surfaced verbatim; recoverable data failures degrade to a general
	// answer instead.
	Ask(ctx context.Context, query, sessionID string) (domain.Answer, error)
}
