package types

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/gotd/td/tg"
)

// MediaKind classifies the message's media so name/mime synthesis can fall
// back to the fixed mapping table in spec.md §4.1 when the upstream message
// carries no file_name or mime_type attribute.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
	MediaVideoNote MediaKind = "videonote"
	MediaSticker   MediaKind = "sticker"
	MediaDocument  MediaKind = "document"
)

// FileDescriptor is the value the Metadata Resolver produces for a message
// ID and caches. A FileSize of 0 descriptor is never cached (spec.md §3).
type FileDescriptor struct {
	MessageID int64
	Location  tg.InputFileLocationClass
	FileSize  int64
	FileName  string
	MimeType  string
	UniqueID  string
	MediaKind MediaKind
}

// descriptorGob mirrors FileDescriptor but carries Location as a tagged,
// separately-encoded blob since the interface type can't be gob-registered
// generically without knowing the concrete variant up front.
type descriptorGob struct {
	MessageID    int64
	LocationType string
	LocationData []byte
	FileSize     int64
	FileName     string
	MimeType     string
	UniqueID     string
	MediaKind    MediaKind
}

func (f *FileDescriptor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	dg := descriptorGob{
		MessageID: f.MessageID,
		FileSize:  f.FileSize,
		FileName:  f.FileName,
		MimeType:  f.MimeType,
		UniqueID:  f.UniqueID,
		MediaKind: f.MediaKind,
	}

	switch loc := f.Location.(type) {
	case *tg.InputDocumentFileLocation:
		dg.LocationType = "document"
		var locBuf bytes.Buffer
		if err := gob.NewEncoder(&locBuf).Encode(loc); err != nil {
			return nil, err
		}
		dg.LocationData = locBuf.Bytes()
	case *tg.InputPhotoFileLocation:
		dg.LocationType = "photo"
		var locBuf bytes.Buffer
		if err := gob.NewEncoder(&locBuf).Encode(loc); err != nil {
			return nil, err
		}
		dg.LocationData = locBuf.Bytes()
	default:
		return nil, fmt.Errorf("unsupported location type: %T", f.Location)
	}

	if err := gob.NewEncoder(&buf).Encode(dg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *FileDescriptor) GobDecode(data []byte) error {
	var dg descriptorGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&dg); err != nil {
		return err
	}

	f.MessageID = dg.MessageID
	f.FileSize = dg.FileSize
	f.FileName = dg.FileName
	f.MimeType = dg.MimeType
	f.UniqueID = dg.UniqueID
	f.MediaKind = dg.MediaKind

	locDec := gob.NewDecoder(bytes.NewReader(dg.LocationData))
	switch dg.LocationType {
	case "document":
		var loc tg.InputDocumentFileLocation
		if err := locDec.Decode(&loc); err != nil {
			return err
		}
		f.Location = &loc
	case "photo":
		var loc tg.InputPhotoFileLocation
		if err := locDec.Decode(&loc); err != nil {
			return err
		}
		f.Location = &loc
	default:
		return fmt.Errorf("unknown location type: %s", dg.LocationType)
	}
	return nil
}

// RegisterGobTypes registers the concrete types that flow through
// gob-encoded cache entries. Called once at startup, before any cache use.
func RegisterGobTypes() {
	gob.Register(FileDescriptor{})
	gob.Register(tg.InputDocumentFileLocation{})
	gob.Register(tg.InputPhotoFileLocation{})
}
