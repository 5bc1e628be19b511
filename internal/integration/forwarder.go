package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/xside/xside-server/internal/config"
)

// ForwarderService pushes published telemetry logs to external client
// systems over HTTP and/or MQTT.
type ForwarderService struct {
	nc  *nats.Conn
	cfg config.IntegrationConfig

	sub        *nats.Subscription
	mqttClient mqtt.Client
	httpClient *http.Client
}

// NewForwarderService creates a forwarder
func NewForwarderService(nc *nats.Conn, cfg config.IntegrationConfig) *ForwarderService {
	return &ForwarderService{
		nc:  nc,
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
		},
	}
}

// Start connects outbound clients and subscribes to log events
func (s *ForwarderService) Start(ctx context.Context) error {
	if s.cfg.MQTT.Enabled {
		opts := mqtt.NewClientOptions().
			AddBroker(s.cfg.MQTT.Broker).
			SetClientID(s.cfg.MQTT.ClientID).
			SetUsername(s.cfg.MQTT.Username).
			SetPassword(s.cfg.MQTT.Password).
			SetConnectTimeout(10 * time.Second).
			SetAutoReconnect(true)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect MQTT broker: %w", token.Error())
		}
		s.mqttClient = client
	}

	sub, err := s.nc.Subscribe(LogSubject, s.handleLogEvent)
	if err != nil {
		return fmt.Errorf("subscribe to log events: %w", err)
	}
	s.sub = sub

	log.Info().
		Bool("http", s.cfg.HTTP.Enabled).
		Bool("mqtt", s.cfg.MQTT.Enabled).
		Msg("Telemetry forwarder started")

	return nil
}

// Stop unsubscribes and disconnects outbound clients
func (s *ForwarderService) Stop() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect(250)
	}
}

// handleLogEvent forwards one published log
func (s *ForwarderService) handleLogEvent(msg *nats.Msg) {
	if s.cfg.HTTP.Enabled && s.cfg.HTTP.Endpoint != "" {
		if err := s.forwardHTTP(msg.Data); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("HTTP forward failed")
		}
	}

	if s.cfg.MQTT.Enabled && s.mqttClient != nil {
		token := s.mqttClient.Publish(s.cfg.MQTT.Topic, 0, false, msg.Data)
		if token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Str("subject", msg.Subject).Msg("MQTT forward failed")
		}
	}
}

func (s *ForwarderService) forwardHTTP(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.cfg.HTTP.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.HTTP.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	return nil
}
