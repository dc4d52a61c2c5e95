package types

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestFileDescriptorGobRoundTripDocument(t *testing.T) {
	RegisterGobTypes()

	original := &FileDescriptor{
		MessageID: 42,
		Location: &tg.InputDocumentFileLocation{
			ID:            7,
			AccessHash:    9,
			FileReference: []byte("ref"),
		},
		FileSize:  1024,
		FileName:  "clip.mp4",
		MimeType:  "video/mp4",
		UniqueID:  "doc7",
		MediaKind: MediaVideo,
	}

	data, err := original.GobEncode()
	if err != nil {
		t.Fatalf("GobEncode: %v", err)
	}

	var decoded FileDescriptor
	if err := decoded.GobDecode(data); err != nil {
		t.Fatalf("GobDecode: %v", err)
	}

	if decoded.MessageID != original.MessageID || decoded.FileName != original.FileName ||
		decoded.MimeType != original.MimeType || decoded.FileSize != original.FileSize ||
		decoded.MediaKind != original.MediaKind {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}

	loc, ok := decoded.Location.(*tg.InputDocumentFileLocation)
	if !ok {
		t.Fatalf("decoded location has type %T, want *tg.InputDocumentFileLocation", decoded.Location)
	}
	if loc.ID != 7 || loc.AccessHash != 9 {
		t.Fatalf("got location %+v, want ID=7 AccessHash=9", loc)
	}
}

func TestFileDescriptorGobRoundTripPhoto(t *testing.T) {
	RegisterGobTypes()

	original := &FileDescriptor{
		MessageID: 1,
		Location: &tg.InputPhotoFileLocation{
			ID:         3,
			AccessHash: 4,
			ThumbSize:  "x",
		},
		FileSize:  0,
		FileName:  "photo_3.jpg",
		MimeType:  "image/jpeg",
		UniqueID:  "photo3",
		MediaKind: MediaPhoto,
	}

	data, err := original.GobEncode()
	if err != nil {
		t.Fatalf("GobEncode: %v", err)
	}

	var decoded FileDescriptor
	if err := decoded.GobDecode(data); err != nil {
		t.Fatalf("GobDecode: %v", err)
	}

	loc, ok := decoded.Location.(*tg.InputPhotoFileLocation)
	if !ok {
		t.Fatalf("decoded location has type %T, want *tg.InputPhotoFileLocation", decoded.Location)
	}
	if loc.ID != 3 || loc.ThumbSize != "x" {
		t.Fatalf("got location %+v, want ID=3 ThumbSize=x", loc)
	}
}

func TestFileDescriptorGobEncodeRejectsUnsupportedLocation(t *testing.T) {
	d := &FileDescriptor{Location: &tg.InputFileLocation{}}
	if _, err := d.GobEncode(); err == nil {
		t.Fatal("expected error for unsupported location type")
	}
}
