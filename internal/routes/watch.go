package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoadWatch registers the HTML preview page at /watch/<path>. It's an
// intentionally thin external-collaborator stub (templating policy is out
// of scope) that reuses the same URL grammar as the file route to locate
// the underlying message, then links to it for playback.
func (e *allRoutes) LoadWatch(r *Route) {
	log := e.log.Named("Watch")
	defer log.Info("Loaded watch preview route")
	handler := e.getWatchRoute(log)
	r.Engine.GET("/watch/*path", handler)
	r.Engine.HEAD("/watch/*path", handler)
}

func (e *allRoutes) getWatchRoute(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyCORS(c)
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")

		rawPath := strings.TrimPrefix(c.Param("path"), "/")
		messageID, hash, err := parseMediaRequest(rawPath, c.Request.URL.Query())
		if err != nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>404 not found</h1>"))
			return
		}

		descriptor, err := e.resolver.Resolve(c.Request.Context(), messageID)
		if err != nil {
			log.Warn("watch preview: descriptor resolution failed", zap.Int64("messageID", messageID), zap.Error(err))
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>404 not found</h1>"))
			return
		}

		fileURL := fmt.Sprintf("/%d?hash=%s", messageID, url.QueryEscape(hash))
		page := fmt.Sprintf(`<!doctype html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="margin:0;background:#000">
<video controls autoplay style="width:100%%;height:100vh" src="%s"></video>
</body></html>`, escapeHTML(descriptor.FileName), fileURL)

		if c.Request.Method == http.MethodHead {
			c.Status(http.StatusOK)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;")
	return replacer.Replace(s)
}
