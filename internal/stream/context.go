package stream

import (
	"context"
	"io"
)

// NewContextReader returns a reader that fails with ctx.Err() once ctx is done
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// Size reports the total number of bytes r will deliver, when that can be
// determined without consuming it. Bounded readers report their window;
// seekable readers report the distance from the current offset to the end
// and are restored to where they were.
func Size(r io.Reader) (int64, bool) {
	if b, ok := r.(*BoundedReader); ok {
		n, err := b.Len()
		if err != nil {
			return 0, false
		}
		pos, _ := b.Position()
		return n - pos, true
	}
	seeker, ok := r.(io.Seeker)
	if !ok {
		return 0, false
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return 0, false
	}
	return end - cur, true
}
