package routes

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/arisuwu/telestream/internal/session"
	"github.com/arisuwu/telestream/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serverVersion = "1.0.0"

type serverStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type telegramBotStatus struct {
	Username      string `json:"username"`
	ActiveClients int    `json:"active_clients"`
}

type resourcesStatus struct {
	TotalWorkload        int64            `json:"total_workload"`
	WorkloadDistribution map[string]int64 `json:"workload_distribution"`
	CacheEntries         int64            `json:"cache_entries"`
	CacheCapacity        string           `json:"cache_capacity"`
}

type statusResponse struct {
	Server      serverStatus      `json:"server"`
	TelegramBot telegramBotStatus `json:"telegram_bot"`
	Resources   resourcesStatus   `json:"resources"`
}

// LoadStatus registers the /status endpoint: a JSON document by default
// (server, telegram_bot and resources sections; resources also carries the
// descriptor cache's cache_entries and cache_capacity), or an HTML
// dashboard when asked for one
// (Accept: text/html, or ?format=html) — the same branching the teacher's
// status.go used, generalized to the ledger's workload-only model.
func (e *allRoutes) LoadStatus(r *Route) {
	log := e.log.Named("Status")
	defer log.Info("Loaded status route")
	r.Engine.GET("/status", e.getStatus(log))
}

func (e *allRoutes) getStatus(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyCORS(c)

		primary := e.pool.Get(session.PrimaryID)
		username := ""
		if primary != nil && primary.Self != nil {
			username = primary.Self.Username
		}

		workloads := e.ldgr.WorkloadSnapshot()
		distribution := make(map[string]int64, len(workloads))
		var total int64
		for id, w := range workloads {
			distribution[strconv.Itoa(id)] = w
			total += w
		}

		var cacheEntries int64
		cacheCapacity := "n/a"
		if e.resolver != nil {
			var capacityBytes int
			cacheEntries, capacityBytes = e.resolver.CacheStats()
			cacheCapacity = utils.HumanBytes(uint64(capacityBytes))
		}

		resp := statusResponse{
			Server: serverStatus{
				Status:  "operational",
				Version: serverVersion,
				Uptime:  utils.TimeFormat(uint64(time.Since(e.startTime).Seconds())),
			},
			TelegramBot: telegramBotStatus{
				Username:      username,
				ActiveClients: e.pool.Len(),
			},
			Resources: resourcesStatus{
				TotalWorkload:        total,
				WorkloadDistribution: distribution,
				CacheEntries:         cacheEntries,
				CacheCapacity:        cacheCapacity,
			},
		}

		if c.GetHeader("Accept") == "text/html" || c.Query("format") == "html" {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderDashboard(resp)))
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// renderDashboard builds a minimal standalone status page; it isn't meant
// to be a full operator console, just a human-readable view of the same
// numbers the JSON endpoint reports.
func renderDashboard(resp statusResponse) string {
	ids := make([]string, 0, len(resp.Resources.WorkloadDistribution))
	for id := range resp.Resources.WorkloadDistribution {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := ""
	for _, id := range ids {
		rows += fmt.Sprintf("<tr><td>%s</td><td>%d</td></tr>", id, resp.Resources.WorkloadDistribution[id])
	}

	return fmt.Sprintf(`<!doctype html>
<html><head><meta charset="utf-8"><title>telestream status</title>
<style>body{font-family:monospace;background:#111;color:#eee;padding:2rem}
table{border-collapse:collapse}td{padding:.25rem .75rem;border:1px solid #333}</style>
</head><body>
<h1>telestream</h1>
<p>status: %s &middot; version: %s &middot; uptime: %s</p>
<p>bot: @%s &middot; active sessions: %d &middot; total workload: %d</p>
<p>descriptor cache: %d entries / %s capacity</p>
<table><tr><th>session</th><th>workload</th></tr>%s</table>
</body></html>`,
		resp.Server.Status, resp.Server.Version, resp.Server.Uptime,
		resp.TelegramBot.Username, resp.TelegramBot.ActiveClients, resp.Resources.TotalWorkload,
		resp.Resources.CacheEntries, resp.Resources.CacheCapacity, rows)
}
