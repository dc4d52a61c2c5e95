package streaming

import (
	"regexp"

	range_parser "github.com/quantumsheep/range-parser"
)

// singleRangeSyntax matches one well-formed byte range spec ("S-E", "S-" or
// "-N"), so a header the parser rejects can still be told apart as
// unsatisfiable rather than malformed.
var singleRangeSyntax = regexp.MustCompile(`^bytes=\s*(\d+-\d*|-\d+)\s*$`)

// ParseRange parses an HTTP Range header against fileSize, returning the
// inclusive byte range to serve. A blank header returns the whole file. The
// second return value reports whether the caller should reply 206 (true)
// or 200 (false) — a range that turns out to cover the entire file is
// promoted to a plain 200, matching the teacher's own no-op-range handling.
// Header syntax is delegated to the same range_parser the teacher used in
// its direct streaming route; satisfiability and the 200/206 split on top
// of it are this gateway's own, since spec.md distinguishes malformed
// syntax (400) from an out-of-bounds range (416) more finely than the
// teacher did.
func ParseRange(header string, fileSize int64) (start, end int64, partial bool, err error) {
	if header == "" {
		return 0, fileSize - 1, false, nil
	}

	ranges, perr := range_parser.Parse(fileSize, header)
	if perr != nil || len(ranges) == 0 {
		if singleRangeSyntax.MatchString(header) {
			return 0, 0, false, ErrUnsatisfiableRange
		}
		return 0, 0, false, ErrInvalidRange
	}

	start, end = ranges[0].Start, ranges[0].End
	if start < 0 || end >= fileSize || start > end {
		return 0, 0, false, ErrUnsatisfiableRange
	}

	if start == 0 && end == fileSize-1 {
		return start, end, false, nil
	}
	return start, end, true, nil
}

// ChunkSize is the fixed size of one UploadGetFileRequest unit.
const ChunkSize = 1024 * 1024

// Align computes the chunk-aligned byte offset to start requesting from
// Telegram for a byte range [start, start+contentLength), how many whole
// chunks to request, and how many leading bytes of the first chunk to
// discard before the range actually begins. The "+1" overshoot on
// numChunks is deliberate, matching original_source/Thunder's
// custom_dl.py stream_file: Telegram's own chunk boundaries don't always
// land exactly where the naive ceil() would, and asking for one extra
// chunk avoids truncating the last few bytes of a range that ends
// mid-chunk.
func Align(start, contentLength int64) (chunkOffset, numChunks, headSkip int64) {
	chunkOffset = (start / ChunkSize) * ChunkSize
	headSkip = start % ChunkSize
	numChunks = (contentLength+headSkip+ChunkSize-1)/ChunkSize + 1
	return
}
