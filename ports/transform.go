package ports

import (
	"context"

	"godrift/domain/chain"
)

// TransformResult carries the translated text plus provider usage accounting.
type TransformResult struct {
	Text  string
	Usage chain.Usage
}

// Transformer performs one translation stage call. Implementations classify
// failures as transient or fatal via the domain error sentinels so the
// executor knows whether a retry is worthwhile.
type Transformer interface {
	Transform(ctx context.Context, stage chain.Stage, input string) (*TransformResult, error)
}
