// Package share hands a finished post to a share target. A target that cannot
// take the file, or a user who backs out, is not an error for the caller: the
// export pipeline falls back to a plain download in both cases.
package share

import (
	"context"
	"errors"
)

var (
	// ErrCancelled is returned when the share was aborted before completion.
	ErrCancelled = errors.New("share cancelled")
	// ErrUnsupported is returned by targets that cannot share the given file.
	ErrUnsupported = errors.New("share not supported")
)

// File is a single attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Payload is what gets shared.
type Payload struct {
	Title string
	Text  string
	Files []File
}

// Receipt describes a completed share. URL is empty for targets that do not
// produce a link.
type Receipt struct {
	URL string `json:"url,omitempty"`
}

// Target is a destination capable of receiving files.
type Target interface {
	CanShare(f File) bool
	Share(ctx context.Context, p Payload) (Receipt, error)
}

// Unsupported never shares anything.
type Unsupported struct{}

func (Unsupported) CanShare(File) bool { return false }

func (Unsupported) Share(context.Context, Payload) (Receipt, error) {
	return Receipt{}, ErrUnsupported
}

// Func adapts a function into a Target that accepts every file.
type Func func(ctx context.Context, p Payload) (Receipt, error)

func (f Func) CanShare(File) bool { return f != nil }

func (f Func) Share(ctx context.Context, p Payload) (Receipt, error) {
	if f == nil {
		return Receipt{}, ErrUnsupported
	}
	return f(ctx, p)
}

// cancelled reports whether err stems from context cancellation.
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
