// Package transport opens URLs in the counterpart app. Opening is fire and
// forget: an error means the URL could not be handed off, never that the
// counterpart failed to act on it.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/pkg/browser"
)

type IOpener interface {
	Open(ctx context.Context, u *url.URL) error
}

// OpenerFunc adapts a function to IOpener
type OpenerFunc func(ctx context.Context, u *url.URL) error

func (f OpenerFunc) Open(ctx context.Context, u *url.URL) error {
	return f(ctx, u)
}

// BrowserOpener hands URLs to the operating system's URL handler
type BrowserOpener struct{}

func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{}
}

func (b *BrowserOpener) Open(_ context.Context, u *url.URL) error {
	if u == nil {
		return fmt.Errorf("url cannot be nil")
	}
	if err := browser.OpenURL(u.String()); err != nil {
		return fmt.Errorf("failed to open %s: %w", u.Scheme, err)
	}
	return nil
}

// WriterOpener prints URLs, one per line, for hosts that route them manually
type WriterOpener struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterOpener(w io.Writer) *WriterOpener {
	return &WriterOpener{w: w}
}

func (w *WriterOpener) Open(_ context.Context, u *url.URL) error {
	if u == nil {
		return fmt.Errorf("url cannot be nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintln(w.w, u.String())
	return err
}

// Recorder keeps every opened URL in memory
type Recorder struct {
	mu   sync.Mutex
	urls []*url.URL
	err  error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Open calls record the URL and return err
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Open(_ context.Context, u *url.URL) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u != nil {
		cp := *u
		r.urls = append(r.urls, &cp)
	}
	return r.err
}

func (r *Recorder) URLs() []*url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*url.URL, len(r.urls))
	copy(out, r.urls)
	return out
}

// Last returns the most recently opened URL, or nil
func (r *Recorder) Last() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.urls) == 0 {
		return nil
	}
	return r.urls[len(r.urls)-1]
}
