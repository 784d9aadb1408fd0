package client

import (
	"context"

	"github.com/profilekit/avatar-cropper/pkg/types"
)

// VisionClient is the capability a remote placement backend provides: ask a
// vision model where the primary subject of a base64-encoded image sits.
type VisionClient interface {
	SuggestSubject(ctx context.Context, model, prompt, imgB64 string) (*types.Placement, error)
}
