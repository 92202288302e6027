// Package stream provides reader adapters used by ranged transfers.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/dl-alexandre/gdsync/internal/utils"
)

var (
	// ErrUnsupported is returned by every mutating or repositioning call on a
	// BoundedReader. It matches errors.ErrUnsupported.
	ErrUnsupported = utils.WrapAppError(errors.ErrUnsupported,
		utils.NewCLIError(utils.ErrCodeUnsupportedOperation, "operation not supported on a bounded reader").Build())

	// ErrDisposed is returned by any call made after Close
	ErrDisposed = utils.NewAppError(
		utils.NewCLIError(utils.ErrCodeDisposed, "bounded reader is closed").Build())
)

// BoundedReader exposes the window [offset, offset+length) of a source
// reader as an independent, read-only stream whose position starts at zero.
//
// The source is borrowed: Close releases the reference but never closes the
// source, and the caller must keep it open until the BoundedReader is done.
// A BoundedReader is not safe for concurrent use.
type BoundedReader struct {
	src    io.Reader
	length int64
	pos    int64
}

// NewBoundedReader positions src at offset and returns a reader limited to
// length bytes. Sources that can seek are seeked; any other source, including
// pipes and nested BoundedReaders whose Seek fails, has exactly offset bytes
// read and discarded.
func NewBoundedReader(src io.Reader, offset, length int64) (*BoundedReader, error) {
	if src == nil {
		return nil, utils.InvalidArgument("src", "source reader is nil")
	}
	if offset < 0 {
		return nil, utils.InvalidArgument("offset", fmt.Sprintf("offset must not be negative, got %d", offset))
	}
	if length < 0 {
		return nil, utils.InvalidArgument("length", fmt.Sprintf("length must not be negative, got %d", length))
	}

	if !seekTo(src, offset) {
		if err := skip(src, offset); err != nil {
			return nil, err
		}
	}

	return &BoundedReader{src: src, length: length}, nil
}

// seekTo reports whether src could be positioned at offset. A failed Seek
// leaves the source where it was.
func seekTo(src io.Reader, offset int64) bool {
	if _, nested := src.(*BoundedReader); nested {
		return false
	}
	seeker, ok := src.(io.Seeker)
	if !ok {
		return false
	}
	_, err := seeker.Seek(offset, io.SeekStart)
	return err == nil
}

// skip discards n bytes from r through a fixed buffer, tolerating short reads
func skip(r io.Reader, n int64) error {
	buf := make([]byte, utils.SkipBufferSize)
	stalls := 0
	for n > 0 {
		chunk := int64(len(buf))
		if n < chunk {
			chunk = n
		}
		read, err := r.Read(buf[:chunk])
		n -= int64(read)
		if n == 0 {
			return nil
		}
		if err == io.EOF {
			return fmt.Errorf("skip %d more bytes: %w", n, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return fmt.Errorf("skip to offset: %w", err)
		}
		if read == 0 {
			stalls++
			if stalls >= 100 {
				return io.ErrNoProgress
			}
			continue
		}
		stalls = 0
	}
	return nil
}

// Read implements io.Reader. It returns 0, io.EOF once length bytes have been
// delivered, whatever the source still holds.
func (b *BoundedReader) Read(p []byte) (int, error) {
	if b.src == nil {
		return 0, ErrDisposed
	}
	remaining := b.length - b.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := b.src.Read(p)
	b.pos += int64(n)
	return n, err
}

// Len returns the window length
func (b *BoundedReader) Len() (int64, error) {
	if b.src == nil {
		return 0, ErrDisposed
	}
	return b.length, nil
}

// Position returns the number of bytes delivered so far
func (b *BoundedReader) Position() (int64, error) {
	if b.src == nil {
		return 0, ErrDisposed
	}
	return b.pos, nil
}

func (b *BoundedReader) Seek(offset int64, whence int) (int64, error) {
	if b.src == nil {
		return 0, ErrDisposed
	}
	return 0, ErrUnsupported
}

func (b *BoundedReader) SetPosition(pos int64) error {
	if b.src == nil {
		return ErrDisposed
	}
	return ErrUnsupported
}

func (b *BoundedReader) Write(p []byte) (int, error) {
	if b.src == nil {
		return 0, ErrDisposed
	}
	return 0, ErrUnsupported
}

func (b *BoundedReader) Truncate(size int64) error {
	if b.src == nil {
		return ErrDisposed
	}
	return ErrUnsupported
}

func (b *BoundedReader) Flush() error {
	if b.src == nil {
		return ErrDisposed
	}
	return ErrUnsupported
}

// Close drops the source reference. It is idempotent.
func (b *BoundedReader) Close() error {
	b.src = nil
	return nil
}
