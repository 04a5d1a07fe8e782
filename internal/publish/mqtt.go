// Package publish forwards device snapshots to an MQTT broker.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoBroker       = errors.New("publish: broker is required")
	ErrPublishTimeout = errors.New("publish: timed out waiting for broker")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TopicPrefix:    "fingerctl",
		QoS:            1,
		Retain:         true,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 10 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.TopicPrefix = strings.Trim(strings.TrimSpace(c.TopicPrefix), "/")
	if c.TopicPrefix == "" {
		c.TopicPrefix = def.TopicPrefix
	}
	if c.QoS > 2 {
		c.QoS = def.QoS
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = def.PublishTimeout
	}
	if c.ClientID == "" {
		c.ClientID = fmt.Sprintf("fingerctl-%d", time.Now().Unix())
	}
	return c
}

// client is the part of mqtt.Client the sink needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each snapshot as JSON to <prefix>/<device>/attendance.
type MQTTSink struct {
	cfg    Config
	client client
}

// NewMQTTSink connects to cfg.Broker. The client reconnects on its own after a
// lost connection.
func NewMQTTSink(cfg Config) (*MQTTSink, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, ErrNoBroker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("%w: connect %s", ErrPublishTimeout, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", cfg.Broker, err)
	}
	return newMQTTSink(cfg, c), nil
}

func newMQTTSink(cfg Config, c client) *MQTTSink {
	return &MQTTSink{cfg: cfg.WithDefaults(), client: c}
}

// Topic returns the attendance topic for deviceID. MQTT wildcard and level
// characters in the id are replaced.
func Topic(prefix, deviceID string) string {
	id := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(deviceID)
	return prefix + "/" + id + "/attendance"
}

func Encode(snap device.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func (s *MQTTSink) Publish(ctx context.Context, snap device.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", snap.DeviceID, err)
	}
	topic := Topic(s.cfg.TopicPrefix, snap.DeviceID)
	token := s.client.Publish(topic, s.cfg.QoS, s.cfg.Retain, payload)

	timer := time.NewTimer(s.cfg.PublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("snapshot published")
	return nil
}

func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
