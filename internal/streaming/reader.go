package streaming

import (
	"context"
	"io"

	"github.com/arisuwu/telestream/internal/session"
	"github.com/gotd/td/tg"
)

// ChunkReader is an io.Reader over a byte range of a Telegram-hosted file,
// fetched chunk_offset-aligned from a single session. It reconstructs the
// contract the teacher's (missing from the retrieved tree) utils.NewTelegramReader
// must have had: construct once per attempt, read until contentLength bytes
// have been delivered.
type ChunkReader struct {
	ctx      context.Context
	sess     *session.Session
	location tg.InputFileLocationClass

	remainingChunks int64
	chunkOffset     int64
	headSkip        int64
	contentLeft     int64

	buf []byte
}

// NewChunkReader builds a reader for [start, start+contentLength) of the
// file at location, to be read from sess.
func NewChunkReader(ctx context.Context, sess *session.Session, location tg.InputFileLocationClass, start, contentLength int64) *ChunkReader {
	chunkOffset, numChunks, headSkip := Align(start, contentLength)
	return &ChunkReader{
		ctx:             ctx,
		sess:            sess,
		location:        location,
		remainingChunks: numChunks,
		chunkOffset:     chunkOffset,
		headSkip:        headSkip,
		contentLeft:     contentLength,
	}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.contentLeft <= 0 || r.remainingChunks <= 0 {
			return 0, io.EOF
		}

		chunk, err := r.sess.StreamChunk(r.ctx, r.location, r.chunkOffset, ChunkSize)
		if err != nil {
			return 0, err
		}
		r.chunkOffset += ChunkSize
		r.remainingChunks--

		if len(chunk) == 0 {
			// Upstream has nothing more to give even though we expected
			// more bytes; treat as end of stream rather than spin forever.
			return 0, io.EOF
		}

		if r.headSkip > 0 {
			if int64(len(chunk)) <= r.headSkip {
				r.headSkip -= int64(len(chunk))
				continue
			}
			chunk = chunk[r.headSkip:]
			r.headSkip = 0
		}

		if int64(len(chunk)) > r.contentLeft {
			chunk = chunk[:r.contentLeft]
		}
		r.contentLeft -= int64(len(chunk))
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
