package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dwarrowdelf/server/internal/config"
	"github.com/dwarrowdelf/server/internal/data"
	"github.com/dwarrowdelf/server/internal/game"
	"github.com/dwarrowdelf/server/internal/handler"
	gonet "github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/persist"
	"github.com/dwarrowdelf/server/internal/scripting"
	"github.com/dwarrowdelf/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("DWARROWDELF_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("server starting",
		zap.String("name", cfg.Server.Name),
		zap.Int("id", cfg.Server.ID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	schemaVersion, err := persist.RunMigrations(ctx, db.Pool)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("database ready", zap.Int64("schema", schemaVersion))

	accountRepo := persist.NewAccountRepo(db)
	playerRepo := persist.NewPlayerRepo(db)
	saveRepo := persist.NewSaveRepo(db)

	terrains, err := data.LoadTerrainTable(cfg.Game.TerrainPath)
	if err != nil {
		return fmt.Errorf("terrain table: %w", err)
	}
	log.Info("terrain table loaded", zap.Int("materials", terrains.Count()))

	w := world.NewWorld(turnMode(cfg.Game.TurnMode), log)
	buildMap(w, cfg, terrains)

	saves, err := saveRepo.Latest(ctx, 1)
	if err != nil {
		return fmt.Errorf("load latest save: %w", err)
	}
	if len(saves) > 0 {
		w.Restore(int(saves[0].Tick), saves[0].GameDate)
		log.Info("resuming from save",
			zap.String("label", saves[0].Label),
			zap.Int32("tick", saves[0].Tick),
		)
	}

	luaEngine, err := scripting.NewEngine(cfg.Game.ScriptsPath, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()

	netServer, err := gonet.NewServer(
		cfg.Network.BindAddress,
		cfg.Network.InQueueSize,
		cfg.Network.OutQueueSize,
		cfg.Network.PacketsPerSecond,
		cfg.Network.WriteTimeout,
		log,
	)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	engine := game.NewEngine(cfg, w, netServer, log)

	maxID, err := playerRepo.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("seed player ids: %w", err)
	}
	engine.SetNextPlayerID(world.PlayerID(maxID) + 1)

	luaEngine.BindWorld(w, engine.ConnectedPlayerCount)

	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, &handler.Deps{
		Engine:      engine,
		Config:      cfg,
		Log:         log,
		AccountRepo: accountRepo,
		PlayerRepo:  playerRepo,
		SaveRepo:    saveRepo,
		Scripting:   luaEngine,
	})
	engine.SetRegistry(reg)

	netServer.SetWake(engine.Dispatcher().Signal)
	go netServer.AcceptLoop()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdownCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		netServer.Shutdown()
		engine.Shutdown()
	}()

	log.Info("listening", zap.String("addr", netServer.Addr().String()))
	engine.Run()
	log.Info("server stopped")
	return nil
}

func turnMode(name string) world.TurnMode {
	if name == "sequential" {
		return world.TurnModeSequential
	}
	return world.TurnModeSimultaneous
}

func visibilityMode(name string) world.VisibilityMode {
	switch name {
	case "all_visible":
		return world.VisibilityAllVisible
	case "global_fov":
		return world.VisibilityGlobalFOV
	default:
		return world.VisibilityLivingLOS
	}
}

// Terrain material IDs as defined in data/terrain.yaml.
const (
	terrainEmpty uint16 = 1
	terrainRock  uint16 = 2
)

// buildMap generates the starting environment: open air above solid rock,
// with a spawn point on the surface.
func buildMap(w *world.World, cfg *config.Config, terrains *data.TerrainTable) {
	const (
		width    = 64
		height   = 64
		depth    = 16
		surfaceZ = 8
	)
	env := w.CreateEnvironment("overworld",
		world.Size{Width: width, Height: height, Depth: depth},
		visibilityMode(cfg.Game.VisibilityMode),
		terrains,
		func(p world.Point) world.TileData {
			if p.Z >= surfaceZ {
				return world.TileData{TerrainID: terrainEmpty}
			}
			return world.TileData{TerrainID: terrainRock}
		},
	)
	env.MinedTile = world.TileData{TerrainID: terrainEmpty}
	env.SpawnLocation = world.Point{X: width / 2, Y: height / 2, Z: surfaceZ}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
