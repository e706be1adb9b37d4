package delivery

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	MQTTSinkName       = "mqtt"
	defaultMQTTTimeout = 5 * time.Second
)

type MQTT struct {
	Client  mqtt.Client
	Topic   string
	Timeout time.Duration
}

// NewMQTT connects to broker and returns a sink publishing to topic.
func NewMQTT(broker, topic, clientID string, timeout time.Duration) (*MQTT, error) {
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("unable to connect to MQTT broker %s: %s", broker, err)
	}
	return &MQTT{Client: c, Topic: topic, Timeout: timeout}, nil
}

func (m MQTT) Name() string {
	return MQTTSinkName
}

// Deliver publishes the batch with QoS 0.
func (m *MQTT) Deliver(ctx context.Context, batch *sensor.Batch) error {
	body, err := payload(batch)
	if err != nil {
		return err
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}

	token := m.Client.Publish(m.Topic, 0, false, body)
	select {
	case <-token.Done():
	case <-time.After(timeout):
		return fmt.Errorf("%w: timed out publishing to %s", sensor.ErrDelivery, m.Topic)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", sensor.ErrDelivery, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: failed to publish to %s: %s", sensor.ErrDelivery, m.Topic, err)
	}
	glog.V(1).Infof("published %d records to %s", len(batch.Observations), m.Topic)
	return nil
}

func (m *MQTT) Close() {
	m.Client.Disconnect(250)
}
