package radar

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRenderFailure wraps any error raised while drawing to a surface.
	ErrRenderFailure = errors.New("radar: render failure")
	// ErrDisposed is returned by a Chart after Dispose.
	ErrDisposed = errors.New("radar: chart disposed")
)

// Media types produced by the renderers.
const (
	MediaSVG = "image/svg+xml"
	MediaPNG = "image/png"
	MediaPDF = "application/pdf"
)

// Renderer draws a Geometry to a concrete surface.
type Renderer interface {
	Render(g Geometry) (*Chart, error)
	MediaType() string
}

// Chart is a rendered surface. It is owned by whoever rendered it and must be
// released with Dispose before a replacement is installed.
type Chart struct {
	mu        sync.Mutex
	mediaType string
	data      []byte
	disposed  bool
}

func newChart(mediaType string, data []byte) *Chart {
	return &Chart{mediaType: mediaType, data: data}
}

// MediaType returns the MIME type of the encoded chart.
func (c *Chart) MediaType() string { return c.mediaType }

// Bytes returns a copy of the encoded chart.
func (c *Chart) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out, nil
}

// Disposed reports whether Dispose has been called.
func (c *Chart) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Clone returns an independent copy that outlives Dispose on c. Cloning a
// disposed chart yields a disposed chart.
func (c *Chart) Clone() *Chart {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &Chart{mediaType: c.mediaType, disposed: c.disposed}
	if !c.disposed {
		out.data = make([]byte, len(c.data))
		copy(out.data, c.data)
	}
	return out
}

// Dispose releases the encoded surface. Calling it twice is a no-op.
func (c *Chart) Dispose() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.data = nil
	return nil
}

func renderFailure(surface string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRenderFailure, surface, err)
}

// ForMediaType returns the renderer producing the given media type, or the
// short names "svg", "png" and "pdf".
func ForMediaType(mt string) (Renderer, error) {
	switch mt {
	case MediaSVG, "svg":
		return SVGRenderer{}, nil
	case MediaPNG, "png":
		return PNGRenderer{}, nil
	case MediaPDF, "pdf":
		return PDFRenderer{}, nil
	default:
		return nil, fmt.Errorf("radar: unsupported chart format %q", mt)
	}
}
