package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/arisuwu/telestream/internal/session"
	"github.com/arisuwu/telestream/internal/streaming"
	"github.com/arisuwu/telestream/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const secureHashLength = 6

var (
	hashFirstPattern = regexp.MustCompile(fmt.Sprintf(`^([a-zA-Z0-9_-]{%d})(\d+)(?:/.*)?$`, secureHashLength))
	idFirstPattern   = regexp.MustCompile(`^(\d+)(?:/.*)?$`)
	validHashPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// parseMediaRequest extracts (messageID, providedHash) from the request
// path, matching either URL shape from spec.md §4.6. The hash is checked
// only for well-formedness (length and alphabet), never against the
// descriptor's UniqueID — see DESIGN.md's hash-binding decision for why.
func parseMediaRequest(rawPath string, query url.Values) (int64, string, error) {
	clean := strings.Trim(rawPath, "/")
	unescaped, err := url.PathUnescape(clean)
	if err == nil {
		clean = unescaped
	}

	if m := hashFirstPattern.FindStringSubmatch(clean); m != nil {
		hash, idStr := m[1], m[2]
		messageID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return 0, "", streaming.ErrInvalidURL
		}
		if len(hash) == secureHashLength && validHashPattern.MatchString(hash) {
			return messageID, hash, nil
		}
	}

	if m := idFirstPattern.FindStringSubmatch(clean); m != nil {
		messageID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, "", streaming.ErrInvalidURL
		}
		hash := strings.TrimSpace(query.Get("hash"))
		if len(hash) == secureHashLength && validHashPattern.MatchString(hash) {
			return messageID, hash, nil
		}
		return 0, "", streaming.ErrInvalidURL
	}

	return 0, "", streaming.ErrInvalidURL
}

// LoadFile registers the two file-URL shapes described in spec.md §4.6 as
// a NoRoute fallback, since gin's radix router can't host a root-level
// wildcard alongside the static "/" and "/status" routes in the same
// tree. Anything that isn't "/", "/status", "/watch/*" or an OPTIONS
// preamble falls through to here.
func (e *allRoutes) LoadFile(r *Route) {
	log := e.log.Named("File")
	defer log.Info("Loaded file streaming route")
	handler := e.getFileRoute(log)
	r.Engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		handler(c)
	})
}

func (e *allRoutes) getFileRoute(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyCORS(c)

		messageID, _, err := parseMediaRequest(c.Request.URL.Path, c.Request.URL.Query())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		descriptor, err := e.resolver.Resolve(c.Request.Context(), messageID)
		if err != nil || (descriptor.FileSize == 0 && descriptor.MediaKind != types.MediaPhoto) {
			log.Warn("descriptor resolution failed", zap.Int64("messageID", messageID), zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}

		if descriptor.MediaKind == types.MediaPhoto {
			e.servePhoto(c, log, descriptor)
			return
		}

		e.serveRanged(c, log, messageID, descriptor)
	}
}

// servePhoto implements the photo fast path from spec.md's supplemented
// features: photos report FileSize == 0 and are fetched whole with a
// single UploadGetFile call rather than range-streamed.
func (e *allRoutes) servePhoto(c *gin.Context, log *zap.Logger, d *types.FileDescriptor) {
	primary := e.pool.Get(session.PrimaryID)
	if primary == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no session available"})
		return
	}
	data, err := primary.StreamChunk(c.Request.Context(), d.Location, 0, streaming.ChunkSize)
	if err != nil {
		errID := streaming.NewErrorID()
		log.Error("failed to fetch photo", zap.String("errorID", errID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "error_id": errID})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, d.FileName))
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("X-Content-Type-Options", "nosniff")
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, d.MimeType, data)
}

func (e *allRoutes) serveRanged(c *gin.Context, log *zap.Logger, messageID int64, d *types.FileDescriptor) {
	start, end, partial, err := streaming.ParseRange(c.GetHeader("Range"), d.FileSize)
	if err != nil {
		if err == streaming.ErrUnsatisfiableRange {
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", d.FileSize))
			c.Status(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range header"})
		return
	}

	contentLength := end - start + 1
	mimeType := d.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c.Header("Content-Type", mimeType)
	c.Header("Content-Length", strconv.FormatInt(contentLength, 10))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, url.PathEscape(d.FileName)))
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("X-Content-Type-Options", "nosniff")
	if partial {
		c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, d.FileSize))
		c.Status(http.StatusPartialContent)
	} else {
		c.Status(http.StatusOK)
	}

	if c.Request.Method == http.MethodHead {
		return
	}

	err = streaming.Stream(c.Request.Context(), e.pool, e.ldgr, messageID, d.Location, c.Writer, start, contentLength, log)
	if err != nil {
		if c.Request.Context().Err() != nil {
			log.Debug("client disconnected mid-stream", zap.Int64("messageID", messageID))
			return
		}
		errID := streaming.NewErrorID()
		log.Error("stream failed after exhausting fallback sessions",
			zap.String("errorID", errID), zap.Int64("messageID", messageID), zap.Error(err))
	}
}
