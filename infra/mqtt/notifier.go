package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT notifier.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "dispatch/courier"
	}
	if c.ClientID == "" {
		c.ClientID = "dispatchd"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoNotifier publishes assignment decisions to per-courier MQTT topics.
type PahoNotifier struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// assignmentMessage is the wire payload pushed to a courier's device.
type assignmentMessage struct {
	MessageID string    `json:"message_id"`
	OrderID   string    `json:"order_id"`
	CourierID string    `json:"courier_id"`
	PickupETA time.Time `json:"pickup_eta"`
	SentAt    time.Time `json:"sent_at"`
}

// NewPahoNotifier connects to the MQTT broker.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt config: %w", err)
	}

	log := logger.New("mqtt-notifier")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PahoNotifier{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// NotifyAssignment publishes the decision to the courier's assignment topic.
func (n *PahoNotifier) NotifyAssignment(ctx context.Context, res model.AssignmentResult) error {
	msg := assignmentMessage{
		MessageID: uuid.NewString(),
		OrderID:   res.OrderID,
		CourierID: res.CourierID,
		PickupETA: res.PickupETA,
		SentAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal assignment message: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/assignment", n.prefix, res.CourierID)
	token := n.cli.Publish(topic, n.qos, false, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (n *PahoNotifier) Close() {
	n.cli.Disconnect(250)
}
