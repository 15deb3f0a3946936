// Package bandwidth provides a shared token-bucket rate limiter used by
// both the client chunk pump and the server's chunk-receive path.
package bandwidth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/chunkrelay/chunkrelay/internal/config"
)

// burstMultiplier controls the token bucket burst size relative to the
// per-second rate. A 2x burst allows short savings to be spent on the next
// read/write without reducing sustained throughput below the configured
// limit.
const burstMultiplier = 2

// Limiter rate-limits I/O across all concurrent chunk transfers sharing it.
type Limiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Limiter from a "<size>/s" string such as "5MB/s" or
// "100KiB/s". Returns nil (with a nil error) if limit is "0" or empty,
// meaning unlimited; every method on a nil *Limiter is a safe no-op.
func New(limit string, logger *slog.Logger) (*Limiter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bytesPerSec, err := parseRate(limit)
	if err != nil {
		return nil, fmt.Errorf("bandwidth: parse limit %q: %w", limit, err)
	}

	if bytesPerSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter = unlimited
	}

	burst := int(bytesPerSec) * burstMultiplier
	l := rate.NewLimiter(rate.Limit(bytesPerSec), burst)

	logger.Info("bandwidth: limiter created", "bytes_per_sec", bytesPerSec, "burst", burst)

	return &Limiter{limiter: l, logger: logger}, nil
}

// parseRate parses "5MB/s", "100KB/s", "0" into bytes/sec.
func parseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	normalized := s
	if strings.HasSuffix(strings.ToLower(normalized), "/s") {
		normalized = normalized[:len(normalized)-len("/s")]
	}

	bytes, err := config.ParseSize(normalized)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth rate %q: %w", s, err)
	}

	return bytes, nil
}

// WrapReader returns a rate-limited io.Reader. If l is nil, returns r
// unchanged so callers never need a nil check.
func (l *Limiter) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if l == nil {
		return r
	}

	return &limitedReader{r: r, limiter: l.limiter, ctx: ctx}
}

// WrapWriter returns a rate-limited io.Writer. If l is nil, returns w
// unchanged so callers never need a nil check.
func (l *Limiter) WrapWriter(ctx context.Context, w io.Writer) io.Writer {
	if l == nil {
		return w
	}

	return &limitedWriter{w: w, limiter: l.limiter, ctx: ctx}
}

type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *limitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := waitN(r.limiter, r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

type limitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		if waitErr := waitN(w.limiter, w.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

// RoundTripper wraps an http.RoundTripper, rate-limiting the request body
// of every outgoing request. If l is nil, next is returned unchanged.
func (l *Limiter) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if l == nil {
		return next
	}

	if next == nil {
		next = http.DefaultTransport
	}

	return &limitedTransport{next: next, limiter: l}
}

type limitedTransport struct {
	next    http.RoundTripper
	limiter *Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		req.Body = io.NopCloser(t.limiter.WrapReader(req.Context(), req.Body))
	}

	return t.next.RoundTrip(req)
}

// waitN splits a large token request into burst-sized chunks since
// rate.Limiter.WaitN rejects requests exceeding the burst size.
func waitN(limiter *rate.Limiter, ctx context.Context, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}

		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}

		n -= take
	}

	return nil
}
