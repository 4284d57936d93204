package review

import (
	"context"

	"github.com/dshills/loupe/internal/providers"
)

// ValidateCredential checks b by listing models. It reports true only when
// the listing succeeds with at least one entry.
func ValidateCredential(ctx context.Context, b providers.Backend) bool {
	models, err := b.ListModels(ctx)
	if err != nil {
		return false
	}
	return len(models) > 0
}

// ValidateAssistant reports whether the assistant can be retrieved.
func ValidateAssistant(ctx context.Context, b providers.Backend, assistantID string) bool {
	if assistantID == "" {
		return false
	}
	_, err := b.GetAssistant(ctx, assistantID)
	return err == nil
}
