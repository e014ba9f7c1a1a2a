package polyvox

import (
	"context"
	"io"
	"os"
	"time"
)

// ChunkSource produces a lazy, ordered, finite sequence of audio byte
// buffers. Next returns io.EOF after the final chunk. Sources are not
// restartable; every chunk is yielded exactly once.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

type readerChunkSource struct {
	r         io.Reader
	chunkSize int
	closer    io.Closer
	eof       bool
}

// NewReaderChunkSource reads r in chunks of exactly chunkSize bytes; the
// final chunk may be shorter. Partial reads (e.g. from a pipe or stdin) are
// accumulated until a full chunk is available.
func NewReaderChunkSource(r io.Reader, chunkSize int) ChunkSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerChunkSource{r: r, chunkSize: chunkSize}
}

// NewFileChunkSource opens path and chunks its contents. The file is closed
// when the source is exhausted. Fails with an io_error before any chunk is
// produced if the file cannot be opened.
func NewFileChunkSource(path string, chunkSize int) (ChunkSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewErrorWithCause(ErrorStatusIO, "cannot open audio file", err)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerChunkSource{r: f, chunkSize: chunkSize, closer: f}, nil
}

func (s *readerChunkSource) Next(ctx context.Context) ([]byte, error) {
	if s.eof {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.r, buf)
	switch err {
	case nil:
		return buf, nil
	case io.ErrUnexpectedEOF:
		// Final short chunk, no padding.
		s.finish()
		return buf[:n], nil
	case io.EOF:
		s.finish()
		return nil, io.EOF
	default:
		s.finish()
		return nil, NewErrorWithCause(ErrorStatusIO, "audio read failed", err)
	}
}

func (s *readerChunkSource) finish() {
	s.eof = true
	if s.closer != nil {
		s.closer.Close()
	}
}

// ChunkPacer wraps a ChunkSource and sleeps for a fixed interval after
// yielding each chunk, throttling outbound audio to approximate real-time
// playback rate.
type ChunkPacer struct {
	source   ChunkSource
	interval time.Duration
	primed   bool
}

func NewChunkPacer(source ChunkSource, interval time.Duration) *ChunkPacer {
	return &ChunkPacer{source: source, interval: interval}
}

func (p *ChunkPacer) Next(ctx context.Context) ([]byte, error) {
	if p.primed && p.interval > 0 {
		timer := time.NewTimer(p.interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	chunk, err := p.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	p.primed = true
	return chunk, nil
}
