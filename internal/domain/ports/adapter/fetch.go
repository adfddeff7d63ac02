package adapter

import "context"

// Fetcher retrieves remote bytes, typically a provider's output image or the
// source image handed to a vision model.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
