package streaming

import "testing"

const testFileSize = 10_000_000 // 10 MB

func TestParseRangeEmptyHeaderReturnsWholeFileNotPartial(t *testing.T) {
	start, end, partial, err := ParseRange("", testFileSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 0 || end != testFileSize-1 || partial {
		t.Fatalf("got (%d, %d, %v), want (0, %d, false)", start, end, partial, testFileSize-1)
	}
}

func TestParseRangeOpenEnded(t *testing.T) {
	start, end, partial, err := ParseRange("bytes=500-", testFileSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 500 || end != testFileSize-1 || !partial {
		t.Fatalf("got (%d, %d, %v)", start, end, partial)
	}
}

func TestParseRangeSuffix(t *testing.T) {
	start, end, partial, err := ParseRange("bytes=-500", testFileSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end != testFileSize-1 || start != testFileSize-500 || !partial {
		t.Fatalf("got (%d, %d, %v)", start, end, partial)
	}
}

func TestParseRangeFullSpanPromotedToNonPartial(t *testing.T) {
	_, _, partial, err := ParseRange("bytes=0-9999999", testFileSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partial {
		t.Error("a range covering the whole file should not be marked partial")
	}
}

func TestParseRangeOutOfBoundsIsAnError(t *testing.T) {
	_, _, _, err := ParseRange("bytes=9999999999-", testFileSize)
	if err == nil {
		t.Fatal("expected an error for a start offset past end of file")
	}
}

func TestParseRangeMalformedIsInvalid(t *testing.T) {
	_, _, _, err := ParseRange("not-a-range", testFileSize)
	if err != ErrInvalidRange {
		t.Fatalf("got %v, want ErrInvalidRange", err)
	}
}

func TestAlignNoOffset(t *testing.T) {
	chunkOffset, numChunks, headSkip := Align(0, ChunkSize)
	if chunkOffset != 0 || headSkip != 0 {
		t.Fatalf("got (offset=%d, headSkip=%d), want (0, 0)", chunkOffset, headSkip)
	}
	if numChunks < 1 {
		t.Fatalf("got numChunks=%d, want at least 1", numChunks)
	}
}

func TestAlignMidChunkStart(t *testing.T) {
	start := int64(ChunkSize + 100)
	chunkOffset, _, headSkip := Align(start, 50)
	if chunkOffset != ChunkSize {
		t.Fatalf("got chunkOffset=%d, want %d", chunkOffset, ChunkSize)
	}
	if headSkip != 100 {
		t.Fatalf("got headSkip=%d, want 100", headSkip)
	}
}

func TestAlignOvershootsByOneChunk(t *testing.T) {
	// contentLength exactly one chunk, no head skip: naive ceil() would be
	// 1, but Align deliberately overshoots to 2 (see Align's doc comment).
	_, numChunks, _ := Align(0, ChunkSize)
	if numChunks != 2 {
		t.Fatalf("got numChunks=%d, want 2", numChunks)
	}
}

func TestNewErrorIDIsTwelveHexChars(t *testing.T) {
	id := NewErrorID()
	if len(id) != 12 {
		t.Fatalf("got length %d, want 12", len(id))
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			t.Fatalf("id %q contains non-hex character %q", id, r)
		}
	}
}
