// Package mqtt connects the service to the broker: it feeds inbound
// messages to the dispatch lanes and publishes outbound ones.
package mqtt

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/dispatch"
	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/topics"
)

// Sink accepts inbound messages. Implemented by *dispatch.Pool.
type Sink interface {
	Dispatch(msg dispatch.Message) bool
}

// Client wraps a paho client with the service's topic layout.
type Client struct {
	cfg    config.MQTTConfig
	layout topics.Layout
	sink   Sink
	client paho.Client
	log    *zap.Logger
}

// New configures a client. It does not connect.
func New(cfg config.MQTTConfig, layout topics.Layout, sink Sink, log *zap.Logger) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		layout: layout,
		sink:   sink,
		log:    log.Named("mqtt"),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.CACert != "" {
		tlsConfig, err := newTLSConfig(cfg.CACert)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	opts.SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second)
	opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutSeconds) * time.Second)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		c.log.Info("reconnecting to broker", zap.String("broker", cfg.BrokerURL))
	})

	c.client = paho.NewClient(opts)
	return c, nil
}

func newTLSConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read mqtt ca certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// Connect dials the broker and waits for the first connection.
// Subscriptions are (re)made by the on-connect handler.
func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("connecting to broker",
		zap.String("broker", c.cfg.BrokerURL),
		zap.String("client_id", c.cfg.ClientID),
		zap.Bool("tls", c.cfg.CACert != ""))
	return wait(ctx, c.client.Connect())
}

func (c *Client) onConnect(cl paho.Client) {
	metrics.MQTTConnected.Set(1)
	c.log.Info("connected to broker")

	filters := make(map[string]byte)
	for _, f := range c.layout.Subscriptions() {
		filters[f] = c.cfg.QoS
	}
	token := cl.SubscribeMultiple(filters, c.handle)
	go func() {
		if token.WaitTimeout(time.Duration(c.cfg.ConnectTimeoutSeconds)*time.Second) && token.Error() != nil {
			c.log.Error("subscribe failed", zap.Error(token.Error()))
			return
		}
		c.log.Info("subscribed", zap.Any("filters", filters))
	}()
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	metrics.MQTTConnected.Set(0)
	c.log.Warn("connection to broker lost", zap.Error(err))
}

// handle queues an inbound message on its module's lane.
func (c *Client) handle(_ paho.Client, m paho.Message) {
	code, kind, err := c.layout.Parse(m.Topic())
	if err != nil {
		metrics.MessagesDropped.WithLabelValues("topic").Inc()
		c.log.Debug("ignoring message", zap.String("topic", m.Topic()), zap.Error(err))
		return
	}
	metrics.MessagesReceived.WithLabelValues(string(kind)).Inc()

	msg := dispatch.Message{
		ID:         uuid.NewString(),
		ModuleCode: code,
		Kind:       kind,
		Topic:      m.Topic(),
		Payload:    bytes.Clone(m.Payload()),
		ReceivedAt: time.Now(),
	}
	if !c.sink.Dispatch(msg) {
		metrics.MessagesDropped.WithLabelValues("shutdown").Inc()
		c.log.Warn("dispatcher stopped, message dropped",
			zap.String("message_id", msg.ID),
			zap.String("topic", msg.Topic))
	}
}

// Publish sends payload to topic at the configured QoS, not retained.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := wait(ctx, c.client.Publish(topic, c.cfg.QoS, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Check is a readiness check for the broker link.
func (c *Client) Check() error {
	if c.client.IsConnected() {
		return nil
	}
	return errors.New("mqtt not connected")
}

// Unsubscribe stops inbound delivery; the connection stays up for publishing.
func (c *Client) Unsubscribe() {
	token := c.client.Unsubscribe(c.layout.Subscriptions()...)
	if !token.WaitTimeout(2 * time.Second) {
		c.log.Warn("unsubscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		c.log.Warn("unsubscribe failed", zap.Error(err))
	}
}

// Close disconnects, giving in-flight work a moment to finish.
func (c *Client) Close() {
	c.client.Disconnect(250)
	metrics.MQTTConnected.Set(0)
	c.log.Info("disconnected from broker")
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
