package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/netwatch/netmon/internal/logbook"
	"github.com/netwatch/netmon/internal/report"
	"github.com/netwatch/netmon/internal/services"
	"github.com/netwatch/netmon/internal/supervisor"
	"github.com/netwatch/netmon/internal/utils"
	"github.com/netwatch/netmon/pkg/file"
	"github.com/netwatch/netmon/pkg/mqtt"
	"github.com/netwatch/netmon/pkg/probe"
	"github.com/netwatch/netmon/pkg/registry"
	"github.com/rs/zerolog"
)

func main() {
	// Bootstrap logger until the error log file is open
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Open the process-wide error log for the lifetime of the process
	errorLog, err := os.OpenFile(config.Log.ErrorLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open error log file")
	}
	defer errorLog.Close()

	logger = zerolog.New(zerolog.MultiLevelWriter(os.Stdout, errorLog)).With().Timestamp().Logger()

	// Select the probe implementation
	var prober probe.Prober
	probeTimeout := time.Duration(config.Monitor.ProbeTimeout) * time.Second
	switch config.Monitor.ProbeMode {
	case "icmp":
		prober = probe.NewICMPProber(probeTimeout)
	default:
		classifier := probe.NewSubstringClassifier(config.Monitor.LossMarkers)
		prober = probe.NewExecProber(classifier, probeTimeout)
	}
	logger.Info().Str("mode", config.Monitor.ProbeMode).Msg("Probe initialized")

	// Shared journal and persisted device registry
	journal := logbook.NewAggregator(fileClient)
	deviceRegistry := registry.NewFileRegistry(config.Registry.DevicesFile, fileClient)

	sup := supervisor.NewSupervisor(
		prober,
		journal,
		deviceRegistry,
		time.Duration(config.Monitor.ProbeInterval)*time.Second,
		config.Monitor.HistorySize,
		time.Duration(config.AutoSave.Interval)*time.Second,
		config.AutoSave.LogDir,
		logger,
	)
	sup.LoadDevices()

	reporter := report.NewSummaryReporter(sup)

	// Optional MQTT status publisher toward external consumers
	var publisher *services.StatusPublisherService
	if config.Publisher.Enabled {
		clientID := config.Publisher.ClientID
		if clientID == "" {
			clientID = "netmon"
		}
		clientID = clientID + "-" + uuid.New().String()

		mqttClient := mqtt.NewMqttService(fileClient)
		if err := mqttClient.Initialize(config.Publisher.Broker, clientID, config.Publisher.CACertificate); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		defer mqttClient.Disconnect(250)

		publisher = services.NewStatusPublisherService(
			config.Publisher.Topic,
			time.Duration(config.Publisher.Interval)*time.Second,
			config.Publisher.QOS,
			sup,
			mqttClient,
			logger,
		)
		if err := publisher.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start status publisher")
		}
	}

	sup.StartAll()
	logger.Info().Int("devices", len(sup.Devices())).Msg("Monitoring all devices")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	logger.Info().Str("elapsed", sup.ElapsedString()).Msg(reporter.Summary())

	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop status publisher")
		}
	}

	sup.StopAll()

	// Final journal flush so nothing is lost between auto-saves
	if journal.Len() > 0 {
		if _, err := sup.SaveLogNow(); err != nil {
			logger.Error().Err(err).Msg("Failed to save journal on shutdown")
		}
	}
}
