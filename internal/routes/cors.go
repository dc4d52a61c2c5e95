package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const docsURL = "https://github.com/arisuwu/telestream"

func applyCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Range, Content-Type, *")
	c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
}

// LoadCORS registers the root redirect and the OPTIONS preamble every
// other route shares.
func (e *allRoutes) LoadCORS(r *Route) {
	log := e.log.Named("CORS")
	defer log.Info("Loaded root and CORS routes")

	r.Engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, docsURL)
	})

	r.Engine.OPTIONS("/*path", func(c *gin.Context) {
		applyCORS(c)
		c.Header("Access-Control-Max-Age", "86400")
		c.Status(http.StatusOK)
	})
}
