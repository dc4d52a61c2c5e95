// Package session wraps individual Telegram client connections (bot
// workers and the optional power user account) with the operations the
// streaming gateway needs from them: resolving a message, describing its
// media, and reading chunks of the underlying file.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arisuwu/telestream/config"
	"github.com/arisuwu/telestream/internal/types"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Well-known upstream error substrings the teacher's direct.go already
// matched on; classification below builds on the same idiom.
const (
	errSubFloodWait    = "FLOOD_WAIT"
	errSubFileRefStale = "FILE_REFERENCE_EXPIRED"
	errSubAuthRequired = "AUTH_KEY"
	errSubNotVisible   = "CHANNEL_PRIVATE"
)

var (
	ErrMessageNotFound = errors.New("message not found in channel")
	ErrMessageEmpty    = errors.New("message was deleted or has no media")
	ErrTimeout         = errors.New("session timed out talking to telegram")
)

// RateLimitedError carries the retry-after hint the router and ledger use
// to decide how long to blacklist a session for.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// NotYetVisibleError means this particular session's account can't see the
// archive channel yet (e.g. a freshly started worker not added as admin).
type NotYetVisibleError struct {
	SessionID int
}

func (e *NotYetVisibleError) Error() string {
	return fmt.Sprintf("session %d cannot see the archive channel", e.SessionID)
}

// Session is a single authenticated Telegram connection: the primary bot
// (ID 0), a secondary worker bot (small positive IDs from MULTI_TOKEN*), or
// the long-lived power user session (ID 99, from STRING_SESSION).
type Session struct {
	ID     int
	Client *gotgproto.Client
	Self   *tg.User
	log    *zap.Logger

	startedAt time.Time
}

func (s *Session) String() string {
	username := "?"
	if s.Self != nil {
		username = s.Self.Username
	}
	return fmt.Sprintf("session(%d|@%s)", s.ID, username)
}

// toBotAPIPeerID converts a raw channel ID to the BotAPI -100… form that
// gotgproto's PeerStorage keys peers by from beta22 onward.
func toBotAPIPeerID(rawChannelID int64) int64 {
	var id constant.TDLibPeerID
	id.Channel(rawChannelID)
	return int64(id)
}

// archiveChannel resolves the configured BIN_CHANNEL to an *tg.InputChannel,
// using PeerStorage as a process-lifetime cache so repeated lookups don't
// round-trip to Telegram.
func (s *Session) archiveChannel(ctx context.Context) (*tg.InputChannel, error) {
	botAPIID := toBotAPIPeerID(config.ValueOf.BinChannel)
	if cached := s.Client.PeerStorage.GetInputPeerById(botAPIID); cached != nil {
		if peer, ok := cached.(*tg.InputPeerChannel); ok {
			return &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash}, nil
		}
	}

	input := &tg.InputChannel{ChannelID: config.ValueOf.BinChannel}
	res, err := s.Client.API().ChannelsGetChannels(ctx, []tg.InputChannelClass{input})
	if err != nil {
		return nil, fmt.Errorf("resolving archive channel: %w", err)
	}
	if len(res.GetChats()) == 0 {
		return nil, errors.New("archive channel not found")
	}
	channel, ok := res.GetChats()[0].(*tg.Channel)
	if !ok {
		return nil, errors.New("archive channel peer has unexpected type")
	}
	s.Client.PeerStorage.AddPeer(channel.GetID(), channel.AccessHash, storage.TypeChannel, "")
	return channel.AsInput(), nil
}

// GetMessage fetches the archived message for messageID, bounded to 15s per
// spec (mirrors original_source/Thunder's get_message timeout). Errors are
// classified so callers (the metadata resolver, the streaming state
// machine) can decide whether to fail over to another session.
func (s *Session) GetMessage(ctx context.Context, messageID int64) (*tg.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	channel, err := s.archiveChannel(ctx)
	if err != nil {
		return nil, classifyError(s.ID, err)
	}

	req := tg.ChannelsGetMessagesRequest{
		Channel: channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: int(messageID)}},
	}
	res, err := s.Client.API().ChannelsGetMessages(ctx, &req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, classifyError(s.ID, err)
	}

	messages, ok := res.(*tg.MessagesChannelMessages)
	if !ok || len(messages.Messages) == 0 {
		return nil, ErrMessageNotFound
	}
	message, ok := messages.Messages[0].(*tg.Message)
	if !ok {
		return nil, ErrMessageEmpty
	}
	return message, nil
}

// Describe extracts a FileDescriptor from a message's media, synthesizing
// file name and MIME type when Telegram didn't attach them (spec.md §4.1).
func Describe(message *tg.Message) (*types.FileDescriptor, error) {
	switch media := message.Media.(type) {
	case *tg.MessageMediaDocument:
		document, ok := media.Document.AsNotEmpty()
		if !ok {
			return nil, fmt.Errorf("document media is empty")
		}
		kind, fileName, mimeType := describeDocument(document)
		return &types.FileDescriptor{
			MessageID: int64(message.ID),
			Location:  document.AsInputDocumentFileLocation(),
			FileSize:  document.Size,
			FileName:  fileName,
			MimeType:  mimeType,
			UniqueID:  fmt.Sprintf("doc%d", document.ID),
			MediaKind: kind,
		}, nil

	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.AsNotEmpty()
		if !ok {
			return nil, fmt.Errorf("photo media is empty")
		}
		if len(photo.Sizes) == 0 {
			return nil, fmt.Errorf("photo has no sizes")
		}
		largest := photo.Sizes[len(photo.Sizes)-1]
		size, ok := largest.AsNotEmpty()
		if !ok {
			return nil, fmt.Errorf("photo size descriptor is empty")
		}
		location := &tg.InputPhotoFileLocation{
			ID:            photo.GetID(),
			AccessHash:    photo.GetAccessHash(),
			FileReference: photo.GetFileReference(),
			ThumbSize:     size.GetType(),
		}
		return &types.FileDescriptor{
			MessageID: int64(message.ID),
			Location:  location,
			FileSize:  0, // unknown up front; fetched whole on the photo fast path
			FileName:  fmt.Sprintf("photo_%d.jpg", photo.GetID()),
			MimeType:  "image/jpeg",
			UniqueID:  fmt.Sprintf("photo%d", photo.GetID()),
			MediaKind: types.MediaPhoto,
		}, nil
	}

	return nil, fmt.Errorf("message has no streamable media: %T", message.Media)
}

// describeDocument classifies a document's media kind and fills in a
// filename/MIME type when the upload didn't set one, following the mapping
// table in spec.md §4.1.
func describeDocument(document *tg.Document) (types.MediaKind, string, string) {
	var fileName, mimeType string
	var kind = types.MediaDocument

	for _, attr := range document.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			fileName = a.FileName
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				kind = types.MediaVoice
			} else {
				kind = types.MediaAudio
			}
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				kind = types.MediaVideoNote
			} else {
				kind = types.MediaVideo
			}
		case *tg.DocumentAttributeAnimated:
			kind = types.MediaAnimation
		case *tg.DocumentAttributeSticker:
			kind = types.MediaSticker
		}
	}

	mimeType = document.MimeType
	if fileName == "" {
		fileName, mimeType = synthesizeNameAndMime(kind, document.ID, mimeType)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return kind, fileName, mimeType
}

// synthesizeNameAndMime mirrors Thunder's get_file_info_sync fallback table:
// a document with no recorded file_name still gets a sensible extension.
func synthesizeNameAndMime(kind types.MediaKind, id int64, mimeType string) (string, string) {
	switch kind {
	case types.MediaAudio:
		return fmt.Sprintf("audio_%d.mp3", id), orDefault(mimeType, "audio/mpeg")
	case types.MediaVoice:
		return fmt.Sprintf("voice_%d.ogg", id), orDefault(mimeType, "audio/ogg")
	case types.MediaVideo:
		return fmt.Sprintf("video_%d.mp4", id), orDefault(mimeType, "video/mp4")
	case types.MediaVideoNote:
		return fmt.Sprintf("video_note_%d.mp4", id), orDefault(mimeType, "video/mp4")
	case types.MediaAnimation:
		return fmt.Sprintf("animation_%d.mp4", id), orDefault(mimeType, "video/mp4")
	case types.MediaSticker:
		return fmt.Sprintf("sticker_%d.webp", id), orDefault(mimeType, "image/webp")
	default:
		return fmt.Sprintf("file_%d.bin", id), orDefault(mimeType, "application/octet-stream")
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// StreamChunk issues a single UploadGetFileRequest. streaming.ChunkReader
// calls it once per chunk, so an upstream error surfaces at the chunk where
// it happened and the streaming state machine can fail over from there.
func (s *Session) StreamChunk(ctx context.Context, location tg.InputFileLocationClass, offset, limit int64) ([]byte, error) {
	res, err := s.Client.API().UploadGetFile(ctx, &tg.UploadGetFileRequest{
		Location: location,
		Offset:   offset,
		Limit:    int(limit),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, classifyError(s.ID, err)
	}
	file, ok := res.(*tg.UploadFile)
	if !ok {
		return nil, fmt.Errorf("unexpected upload.File variant %T", res)
	}
	return file.GetBytes(), nil
}

// classifyError turns an upstream RPC error into one of the sentinel error
// types the router and streaming state machine key their fail-over logic
// on. gotd/td doesn't expose typed RPC errors for every case the teacher's
// code needed to handle, so — matching the teacher's own direct.go — this
// falls back to substring matching on well-known error codes.
func classifyError(sessionID int, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, errSubFloodWait):
		return &RateLimitedError{RetryAfter: 60 * time.Second}
	case strings.Contains(msg, errSubNotVisible), strings.Contains(msg, errSubAuthRequired):
		return &NotYetVisibleError{SessionID: sessionID}
	case strings.Contains(msg, errSubFileRefStale):
		return err
	default:
		return err
	}
}
