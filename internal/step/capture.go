package step

import "context"

// Capturer records a diagnostic artifact for a failed step and returns
// where it was stored.
type Capturer interface {
	Capture(ctx context.Context, tag string) (string, error)
}

// CaptureFunc adapts a function to the Capturer interface.
type CaptureFunc func(ctx context.Context, tag string) (string, error)

func (f CaptureFunc) Capture(ctx context.Context, tag string) (string, error) {
	return f(ctx, tag)
}
