package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heatwise/internal/adapters"
	"heatwise/internal/engine"
	"heatwise/internal/handlers"
	"heatwise/internal/logger"
	"heatwise/internal/repository"
	"heatwise/internal/repository/db"
	"heatwise/internal/server"
	"heatwise/internal/service"

	"github.com/spf13/viper"
)

func main() {
	log := logger.Get(logger.InfoLevel)

	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	engineCfg := engineConfig()
	if err := engineCfg.Validate(); err != nil {
		// An out-of-range safety band must never run.
		log.Fatalw("invalid control configuration", "err", err)
	}

	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tariff, sensor, relay := buildAdapters(ctx, log)

	services := service.NewService(repos, service.Options{
		DeviceID:      viper.GetString("device.id"),
		Engine:        engineCfg,
		Tariff:        tariff,
		Sensor:        sensor,
		Relay:         relay,
		RecentChanges: viper.GetInt("view.recent_changes"),
		SigningKey:    viper.GetString("auth.signing_key"),
	}, log)
	apiHandler := handlers.NewHandler(services, log)

	// Background tasks: single decision loop per device, one view builder.
	go services.Loop.Run(ctx, viper.GetDuration("control.tick"))
	go services.View.Run(ctx, viper.GetDuration("view.poll"))

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetDefault("device.id", "cylinder-1")
	viper.SetDefault("control.tick", 60*time.Second)
	viper.SetDefault("view.poll", time.Second)
	viper.SetDefault("view.recent_changes", 200)
	return viper.ReadInConfig()
}

// engineConfig maps the control section onto the engine parameters. All
// thresholds are operational knobs; none are hard-coded.
func engineConfig() engine.Config {
	return engine.Config{
		TargetTempTenths:       viper.GetInt("control.target_temp_tenths"),
		SafetyMaxTempTenths:    viper.GetInt("control.safety_max_temp_tenths"),
		SafetyResumeTempTenths: viper.GetInt("control.safety_resume_temp_tenths"),
		PriceThresholdMinor:    viper.GetInt("control.price_threshold_minor"),
		MinDwell:               viper.GetDuration("control.min_dwell"),
		TemperatureStaleness:   viper.GetDuration("control.temperature_staleness"),
	}
}

// buildAdapters wires the configured collaborators: a tariff API client or
// a static schedule, an MQTT sensor or the simulated plant. The simulated
// plant doubles as the relay when no real actuator is configured.
func buildAdapters(ctx context.Context, log *logger.Logger) (adapters.TariffSource, adapters.TemperatureSource, adapters.RelayActuator) {
	var tariff adapters.TariffSource
	if url := viper.GetString("tariff.url"); url != "" {
		client := adapters.NewTariffClient(url, viper.GetString("tariff.api_token"), log)
		go client.Run(ctx, viper.GetDuration("tariff.refresh"))
		tariff = client
	} else {
		tariff = &adapters.StaticTariff{
			CheapFromHour: viper.GetInt("tariff.cheap_from_hour"),
			CheapToHour:   viper.GetInt("tariff.cheap_to_hour"),
			CheapMinor:    viper.GetInt("tariff.cheap_minor"),
			StandardMinor: viper.GetInt("tariff.standard_minor"),
		}
	}

	plant := adapters.NewSimulatedPlant()
	go plant.Run(ctx, viper.GetDuration("control.tick"))

	var sensor adapters.TemperatureSource = plant
	if broker := viper.GetString("sensor.broker"); broker != "" {
		mqttSensor, err := adapters.NewMQTTSensor(broker,
			viper.GetString("device.id"), viper.GetString("sensor.topic"), log)
		if err != nil {
			log.Fatalw("failed to connect temperature sensor", "err", err)
		}
		sensor = mqttSensor
	}

	return tariff, sensor, plant
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "heatwise.db")
		dbPath = "heatwise.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful
// shutdown: background loops are canceled first (the view builder persists
// its checkpoint on the way out), then in-flight requests drain.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
