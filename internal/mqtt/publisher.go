package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	gonanoid "github.com/matoous/go-nanoid"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
)

var ErrNotConnected = errors.New("mqtt client not connected")

const clientIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Publisher sends run results to the broker under
// {prefix}/{station}/{subtopic}. Every message is retained.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	root      string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clientID, err := uniqueClientID(cfg.MQTTClientID)
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		cfg:    cfg,
		root:   topicRoot(cfg.MQTTTopicPrefix, cfg.StationID),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(clientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort, "client_id", clientID)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Connect waits for the initial connection and respects ctx and Disconnect().
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// Publish sends payload to subtopic below the station root with QoS 1.
func (p *Publisher) Publish(subtopic string, payload []byte) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	topic := p.Topic(subtopic)
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("published", "topic", topic, "size", len(payload))
	return nil
}

// Topic returns the full topic of subtopic.
func (p *Publisher) Topic(subtopic string) string {
	return p.root + "/" + strings.TrimPrefix(subtopic, "/")
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "publisher stopped".
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func topicRoot(prefix, station string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return station
	}
	return prefix + "/" + station
}

// uniqueClientID suffixes base with a random id; two runs must never hold
// the same client id at once.
func uniqueClientID(base string) (string, error) {
	suffix, err := gonanoid.Generate(clientIDAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("mqtt client id: %w", err)
	}
	if base == "" {
		return suffix, nil
	}
	return base + "-" + suffix, nil
}
