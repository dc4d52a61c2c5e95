package main

import (
	"context"
	"fmt"
	"time"

	"github.com/arisuwu/telestream/config"
	"github.com/arisuwu/telestream/internal/ledger"
	"github.com/arisuwu/telestream/internal/maintenance"
	"github.com/arisuwu/telestream/internal/metadata"
	"github.com/arisuwu/telestream/internal/routes"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/arisuwu/telestream/internal/types"
	"github.com/arisuwu/telestream/internal/utils"

	"github.com/spf13/cobra"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:                "run",
	Short:              "Run the streaming gateway with the given configuration.",
	DisableSuggestions: false,
	Run:                runApp,
}

var startTime time.Time = time.Now()

func runApp(cmd *cobra.Command, args []string) {
	utils.InitLogger(false, "info")
	log := utils.Logger
	mainLogger := log.Named("Main")
	mainLogger.Info("Starting server")
	config.Load(log, cmd)

	utils.InitLogger(config.ValueOf.Dev, config.ValueOf.LogLevel)
	log = utils.Logger
	mainLogger = log.Named("Main")

	types.RegisterGobTypes()

	pool := session.NewPool(log)
	ldgr := ledger.New()

	if err := pool.StartPrimary(); err != nil {
		mainLogger.Panic("Failed to start primary session", zap.Error(err))
	}
	ldgr.Track(session.PrimaryID)

	pool.StartPower()
	if pool.Get(session.PowerID) != nil {
		ldgr.Track(session.PowerID)
	}

	pool.StartSecondaries()
	for _, id := range pool.IDs() {
		ldgr.Track(id)
	}

	resolver := metadata.NewResolver(pool, ldgr, log)

	router := getRouter(log, pool, ldgr, resolver)
	statusRouter := getStatusRouter(log, pool, ldgr)

	maintLoop := maintenance.NewLoop(pool, ldgr, log)
	maintCtx, cancelMaint := context.WithCancel(context.Background())
	defer cancelMaint()
	go maintLoop.Run(maintCtx)

	mainLogger.Info("Server started", zap.Int("mainPort", config.ValueOf.Port), zap.Int("statusPort", config.ValueOf.StatusPort))
	mainLogger.Info("telestream", zap.String("version", versionString))
	mainLogger.Sugar().Infof("Main server is running at %s", config.ValueOf.Host)
	mainLogger.Sugar().Infof("Status server is running at http://0.0.0.0:%d/status", config.ValueOf.StatusPort)

	go func() {
		statusLogger := log.Named("StatusServer")
		statusLogger.Info("Starting status server", zap.Int("port", config.ValueOf.StatusPort))
		if err := statusRouter.Run(fmt.Sprintf(":%d", config.ValueOf.StatusPort)); err != nil {
			statusLogger.Sugar().Fatalln("Failed to start status server:", err)
		}
	}()

	if err := router.Run(fmt.Sprintf(":%d", config.ValueOf.Port)); err != nil {
		mainLogger.Sugar().Fatalln(err)
	}
}

func getRouter(log *zap.Logger, pool *session.Pool, ldgr *ledger.Ledger, resolver *metadata.Resolver) *gin.Engine {
	if config.ValueOf.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var router *gin.Engine
	if config.ValueOf.LogLevel == "error" || config.ValueOf.LogLevel == "warn" {
		router = gin.New()
		router.Use(gin.Recovery())
		router.Use(gin.ErrorLogger())
	} else {
		router = gin.Default()
		router.Use(gin.ErrorLogger())
	}

	routes.Load(log, router, pool, ldgr, resolver, startTime)
	return router
}

func getStatusRouter(log *zap.Logger, pool *session.Pool, ldgr *ledger.Ledger) *gin.Engine {
	if config.ValueOf.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var router *gin.Engine
	if config.ValueOf.LogLevel == "error" || config.ValueOf.LogLevel == "warn" {
		router = gin.New()
		router.Use(gin.Recovery())
	} else {
		router = gin.Default()
	}

	routes.LoadStatusOnly(log, router, pool, ldgr, startTime)
	return router
}
