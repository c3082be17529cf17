// Package stream wraps playback reads in a token-bucket bandwidth limit.
package stream

import (
	"context"
	"golang.org/x/time/rate"
	"io"
)

const minBurst = 32 << 10

type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	burst   int
}

// NewReader caps r at bytesPerSec. A non-positive limit returns r
// unchanged.
func NewReader(ctx context.Context, r io.Reader, bytesPerSec int) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}
	burst := bytesPerSec
	if burst < minBurst {
		burst = minBurst
	}
	return &limitedReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		burst:   burst,
	}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if len(p) > l.burst {
		p = p[:l.burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
