package interfaces

import (
	"context"

	"github.com/bobmcallan/koru/internal/models"
)

// GenerationStream yields text chunks from an in-flight generation call.
// Next returns io.EOF when the stream is exhausted. Close releases the
// underlying iterator and is safe to call more than once.
type GenerationStream interface {
	Next() (string, error)
	Close() error
}

// GenerationClient is the text-generation provider contract.
type GenerationClient interface {
	// GenerateStream starts a streamed generation call. A non-nil error
	// means the call never began; classify it with ClassifyError.
	GenerateStream(ctx context.Context, req *models.GenerationRequest) (GenerationStream, error)
}

// GenerationErrorKind classifies provider failures for HTTP translation.
type GenerationErrorKind int

const (
	GenErrUnknown GenerationErrorKind = iota
	GenErrRateLimited
	GenErrQuotaExhausted
	GenErrBadCredentials
	GenErrModelNotFound
	GenErrTimeout
)

// TickerClient fetches public 24h ticker rows for trading pairs.
type TickerClient interface {
	Get24hTickers(ctx context.Context, pairs []string) ([]*models.ExchangeTicker, error)
}
