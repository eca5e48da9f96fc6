package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midicompanion/collab"
	"midicompanion/config"
	"midicompanion/core"
	"midicompanion/events"
	"midicompanion/handlers"
	"midicompanion/hotkeys"
	"midicompanion/injector"
	"midicompanion/livemidi"
	"midicompanion/logging"
	"midicompanion/mapper"
	"midicompanion/player"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	settings := config.Load()

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer logger.Sync()

	// The core context: one process-owned value, threaded into every
	// subsystem by reference.
	eng := core.NewEngine(logger)
	eng.Mapper.SetNoteMode(settings.DefaultNoteMode)
	eng.Mapper.SetKeyMode(settings.DefaultKeyMode)
	eng.Injector.SetBackend(settings.DefaultDeliveryBackend)
	eng.Injector.SetModifierDelayMs(settings.DefaultModifierDelayMs)
	eng.Injector.SetKeywords(settings.TargetWindowKeywords)

	bus := events.NewBus(logger)
	keys := injector.New(eng.Injector, injector.NewPlatformBackend(), logger)
	p := player.New(eng, keys, bus, mapper.KeyFor)
	bridge := livemidi.New(eng, keys, bus, p.Stop)
	router := hotkeys.New(bus, logger)
	router.Start()
	defer router.Stop()

	store := collab.NewMemoryStore()
	api := handlers.New(eng, p, keys, bridge, router, bus,
		store, collab.NopDiscovery{}, collab.StaticVersion(version))

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(settings.CORSOrigins, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.Register(r)

	logger.Info("midicompanion listening",
		zap.String("addr", settings.HTTPAddr),
		zap.String("version", version))
	if err := r.Run(settings.HTTPAddr); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
