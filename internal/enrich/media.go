// internal/enrich/media.go
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/pkg/llm"
)

const analyzerPrompt = `Describe this Instagram post for a support agent answering comments about it.
Cover what is shown, any visible text, prices, and product details. Be concise.`

// MediaAnalyzer produces a text description of a media's content using a
// vision-capable completion. The pipeline caches the result on the media
// record, so the same media version is analyzed once.
type MediaAnalyzer struct {
	provider llm.Provider
	model    string
}

// NewMediaAnalyzer creates an analyzer on the given provider. model
// overrides the provider's default when non-empty.
func NewMediaAnalyzer(provider llm.Provider, model string) *MediaAnalyzer {
	return &MediaAnalyzer{provider: provider, model: model}
}

// AnalyzeMedia describes the media's content. Media without a URL cannot be
// analyzed; that is a permanent condition, not a retryable failure.
func (a *MediaAnalyzer) AnalyzeMedia(ctx context.Context, media *types.Media) (string, types.Usage, error) {
	if media.MediaURL == "" {
		return "", types.Usage{}, &types.PermanentError{
			Op:  "analyze media",
			Err: fmt.Errorf("media %s has no URL", media.ID),
		}
	}

	messages := []llm.Message{{
		Role:     "user",
		Content:  analyzerPrompt,
		ImageURL: media.MediaURL,
	}}
	if media.Caption != "" {
		messages[0].Content += "\nCaption: " + media.Caption
	}

	resp, err := a.provider.Complete(ctx, messages, llm.Options{Model: a.model})
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return "", types.Usage{}, &types.PermanentError{Op: "analyze media", Err: err}
		}
		return "", types.Usage{}, &types.TransientError{Op: "analyze media", Err: err}
	}

	usage := types.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	return resp.Content, usage, nil
}
