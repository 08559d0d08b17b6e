package ports

import (
	"context"
	"errors"
)

// ErrOracleUnavailable indicates the configured oracle backend could not be
// reached at all (network failure, missing credentials), as distinct from
// it answering with an unusable response.
var ErrOracleUnavailable = errors.New("oracle: backend unavailable")

// Oracle is the single narrow interface every LLM backend implements: send
// a prompt, get back its raw text completion. Parsing that text into a
// domain.Proposal is the caller's job, not the Oracle's.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
