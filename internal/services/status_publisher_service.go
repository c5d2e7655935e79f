package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/netwatch/netmon/internal/models"
	"github.com/netwatch/netmon/pkg/mqtt"
	"github.com/rs/zerolog"
)

// StatusSource yields the per-device views the publisher fans out.
type StatusSource interface {
	Statuses() []models.StatusUpdate
}

// StatusPublisherService periodically publishes every device's status as
// JSON to an MQTT topic. It is a read-only consumer surface: it never
// touches monitor state beyond taking snapshots.
type StatusPublisherService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	Source     StatusSource
	MqttClient mqtt.Client
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusPublisherService initializes a new StatusPublisherService.
func NewStatusPublisherService(pubTopic string, interval time.Duration, qos int,
	source StatusSource, mqttClient mqtt.Client, logger zerolog.Logger) *StatusPublisherService {

	return &StatusPublisherService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		Source:     source,
		MqttClient: mqttClient,
		Logger:     logger,
	}
}

// Start launches the publishing loop in a separate goroutine.
func (s *StatusPublisherService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("StatusPublisherService is already running")
		return errors.New("status publisher service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPublishLoop()
	}()

	s.Logger.Info().Str("topic", s.PubTopic).Msg("StatusPublisherService started successfully")
	return nil
}

// Stop gracefully stops the publisher.
func (s *StatusPublisherService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("StatusPublisherService is not running")
		return errors.New("status publisher service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("StatusPublisherService stopped successfully")
	return nil
}

// runPublishLoop publishes the status batch at the configured interval.
func (s *StatusPublisherService) runPublishLoop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.publishOnce()
		case <-s.ctx.Done():
			s.Logger.Info().Msg("StatusPublisherService stopping gracefully")
			return
		}
	}
}

// publishOnce serializes the current statuses and publishes them.
func (s *StatusPublisherService) publishOnce() {
	statuses := s.Source.Statuses()
	if len(statuses) == 0 {
		return
	}

	payload, err := json.Marshal(statuses)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to serialize status batch")
		return
	}

	token := s.MqttClient.Publish(s.PubTopic, byte(s.QOS), false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to publish status batch")
	} else {
		s.Logger.Debug().Int("devices", len(statuses)).Msg("Status batch published successfully")
	}
}
