package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mklimuk/sensord"
)

const DefaultTopic = "sensord/gyro"

// quiesce time given to in-flight messages on Close, in milliseconds
const disconnectQuiesce = 250

// tokenPublisher is the subset of paho.Client used for publishing.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type PublisherOpts struct {
	Topic    string
	QoS      byte
	Retained bool
}

type PublisherOpt func(*PublisherOpts)

func WithTopic(topic string) PublisherOpt {
	return func(o *PublisherOpts) {
		o.Topic = topic
	}
}

func WithQoS(qos byte) PublisherOpt {
	return func(o *PublisherOpts) {
		o.QoS = qos
	}
}

func WithRetained(retained bool) PublisherOpt {
	return func(o *PublisherOpts) {
		o.Retained = retained
	}
}

// Publisher pushes sensor events as JSON documents to a MQTT topic.
type Publisher struct {
	client tokenPublisher
	config PublisherOpts
	close  func()
}

func NewPublisher(client tokenPublisher, opts ...PublisherOpt) *Publisher {
	config := PublisherOpts{Topic: DefaultTopic}
	for _, opt := range opts {
		opt(&config)
	}
	return &Publisher{client: client, config: config, close: func() {}}
}

// Connect dials the broker and returns a publisher owning the connection.
func Connect(ctx context.Context, broker, clientID string, opts ...PublisherOpt) (*Publisher, error) {
	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	client := paho.NewClient(clientOpts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("could not connect to mqtt broker %s: %w", broker, err)
	}
	p := NewPublisher(client, opts...)
	p.close = func() { client.Disconnect(disconnectQuiesce) }
	return p, nil
}

func (p *Publisher) Publish(ctx context.Context, ev *sensord.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	token := p.client.Publish(p.config.Topic, p.config.QoS, p.config.Retained, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("could not publish to %s: %w", p.config.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.close()
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
