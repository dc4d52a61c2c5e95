package routes

import (
	"net/url"
	"testing"
)

func TestParseMediaRequestHashFirst(t *testing.T) {
	id, hash, err := parseMediaRequest("Ab3xY9123456789", url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "Ab3xY9" || id != 123456789 {
		t.Fatalf("got (%d, %q), want (123456789, %q)", id, hash, "Ab3xY9")
	}
}

func TestParseMediaRequestHashFirstWithSuffix(t *testing.T) {
	id, hash, err := parseMediaRequest("Ab3xY942/movie.mp4", url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "Ab3xY9" || id != 42 {
		t.Fatalf("got (%d, %q)", id, hash)
	}
}

func TestParseMediaRequestIDFirstWithQueryHash(t *testing.T) {
	q := url.Values{"hash": []string{"Ab3xY9"}}
	id, hash, err := parseMediaRequest("42", q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "Ab3xY9" || id != 42 {
		t.Fatalf("got (%d, %q)", id, hash)
	}
}

func TestParseMediaRequestIDFirstMissingHashIsInvalid(t *testing.T) {
	_, _, err := parseMediaRequest("42", url.Values{})
	if err == nil {
		t.Fatal("expected error when id-first form has no hash query param")
	}
}

func TestParseMediaRequestNonNumericSuffixRejected(t *testing.T) {
	// A 6-char prefix followed by non-digit text matches neither URL shape.
	_, _, err := parseMediaRequest("Ab3x9Zz123456", url.Values{})
	if err == nil {
		t.Fatal("expected error for a path matching neither URL grammar")
	}
}

func TestParseMediaRequestGarbageIsInvalid(t *testing.T) {
	_, _, err := parseMediaRequest("not-a-valid-path-at-all", url.Values{})
	if err == nil {
		t.Fatal("expected error for unparseable path")
	}
}
