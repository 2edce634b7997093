// internal/telemetry/mqtt.go
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig addresses the broker.
type MQTTConfig struct {
	Broker      string // tcp://host:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	MaxRetries  uint64
}

// MQTTSink publishes each record as JSON on <prefix>/<type>.
type MQTTSink struct {
	cfg    MQTTConfig
	client mqtt.Client
}

// NewMQTTSink connects with exponential backoff.
func NewMQTTSink(ctx context.Context, cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("telemetry: mqtt broker required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "thermogate"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("telemetry: mqtt connect failed (broker=%s): %v", cfg.Broker, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: %w", cfg.Broker, err)
	}

	log.Printf("telemetry: mqtt connected (broker=%s)", cfg.Broker)
	return &MQTTSink{cfg: cfg, client: client}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Deliver(ctx context.Context, r Record) error {
	topic, payload, err := encodeMQTT(s.cfg.TopicPrefix, r)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, s.cfg.QoS, false, payload)

	wait := time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("telemetry: mqtt publish timed out (topic=%s)", topic)
	}
	return token.Error()
}

func (s *MQTTSink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

func encodeMQTT(prefix string, r Record) (string, []byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", nil, fmt.Errorf("telemetry: encode record: %w", err)
	}
	return strings.TrimRight(prefix, "/") + "/" + string(r.Type), payload, nil
}
