// Package routes wires the gin HTTP frontend: URL parsing, CORS, the
// status endpoint, and response shaping around the streaming engine.
package routes

import (
	"reflect"
	"time"

	"github.com/arisuwu/telestream/internal/ledger"
	"github.com/arisuwu/telestream/internal/metadata"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Route mirrors the teacher's thin wrapper so every LoadXxx method has a
// uniform signature the reflective registration in Load can call.
type Route struct {
	Name   string
	Engine *gin.Engine
}

type allRoutes struct {
	log       *zap.Logger
	pool      *session.Pool
	ldgr      *ledger.Ledger
	resolver  *metadata.Resolver
	startTime time.Time
}

// Load registers every streaming + status + CORS route on r.
func Load(log *zap.Logger, r *gin.Engine, pool *session.Pool, ldgr *ledger.Ledger, resolver *metadata.Resolver, startTime time.Time) {
	log = log.Named("Routes")
	defer log.Info("Loaded all routes")

	route := &Route{Name: "/", Engine: r}
	all := &allRoutes{log: log, pool: pool, ldgr: ldgr, resolver: resolver, startTime: startTime}
	registerAll(all, route)
}

// LoadStatusOnly registers just the status route, for the dedicated
// status-only server on its own port.
func LoadStatusOnly(log *zap.Logger, r *gin.Engine, pool *session.Pool, ldgr *ledger.Ledger, startTime time.Time) {
	log = log.Named("Routes")
	defer log.Info("Loaded status route")

	route := &Route{Name: "/", Engine: r}
	all := &allRoutes{log: log, pool: pool, ldgr: ldgr, startTime: startTime}
	all.LoadStatus(route)
}

// registerAll calls every exported LoadXxx(*Route) method on all,
// matching the teacher's reflective route registration in routes.go.
func registerAll(all *allRoutes, route *Route) {
	t := reflect.TypeOf(all)
	v := reflect.ValueOf(all)
	for i := 0; i < t.NumMethod(); i++ {
		t.Method(i).Func.Call([]reflect.Value{v, reflect.ValueOf(route)})
	}
}
