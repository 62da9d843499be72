package forwarder

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/tirelog"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTForwarder publishes every record as JSON to <prefix>/record and its
// display projection, retained, to <prefix>/display.
type MQTTForwarder struct {
	mailbox
	Config *MQTTConfig

	client mqtt.Client
}

func NewMQTTForwarder(config MQTTConfig) (*MQTTForwarder, error) {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(config.Timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(config.Timeout) {
		return nil, errors.Errorf("timed out connecting to mqtt broker %s", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "unable to connect to mqtt broker %s", config.Broker)
	}
	log.WithField("broker", config.Broker).Info("connected to mqtt broker")

	return &MQTTForwarder{
		mailbox: newMailbox(),
		Config:  &config,
		client:  client,
	}, nil
}

func (m *MQTTForwarder) Close() error {
	m.client.Disconnect(250)
	return nil
}

func (m *MQTTForwarder) Start(ctx context.Context) error {
	for {
		select {
		case rec := <-m.fwdChan:
			if err := m.forward(rec); err != nil {
				log.WithField("err", err).Error("unable to publish record")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *MQTTForwarder) forward(rec *tirelog.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "unable to marshal record")
	}
	if err := m.publish("record", false, payload); err != nil {
		return err
	}

	payload, err = json.Marshal(tirelog.Project(rec))
	if err != nil {
		return errors.Wrap(err, "unable to marshal display")
	}
	return m.publish("display", true, payload)
}

func (m *MQTTForwarder) publish(suffix string, retained bool, payload []byte) error {
	topic := m.Config.TopicPrefix + "/" + suffix
	token := m.client.Publish(topic, m.Config.QoS, retained, payload)
	if !token.WaitTimeout(m.Config.Timeout) {
		return errors.Errorf("timed out publishing to %s", topic)
	}
	return errors.Wrapf(token.Error(), "unable to publish to %s", topic)
}
