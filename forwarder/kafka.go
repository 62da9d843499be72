package forwarder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jd3nn1s/tirelog"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// to allow testing
var newKafkaWriter = func(config KafkaConfig) messageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// KafkaForwarder writes every record as JSON keyed by session, so one
// drive stays on one partition.
type KafkaForwarder struct {
	mailbox
	Config *KafkaConfig

	w messageWriter
}

func NewKafkaForwarder(config KafkaConfig) (*KafkaForwarder, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if config.Topic == "" {
		return nil, errors.New("no kafka topic configured")
	}
	return &KafkaForwarder{
		mailbox: newMailbox(),
		Config:  &config,
		w:       newKafkaWriter(config),
	}, nil
}

func (k *KafkaForwarder) Close() error {
	return k.w.Close()
}

func (k *KafkaForwarder) Start(ctx context.Context) error {
	for {
		select {
		case rec := <-k.fwdChan:
			if err := k.forward(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithField("err", err).Error("unable to write record to kafka")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *KafkaForwarder) forward(ctx context.Context, rec *tirelog.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "unable to marshal record")
	}
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Session),
		Value: b,
		Time:  rec.Timestamp,
	})
	return errors.Wrapf(err, "unable to write to topic %s", k.Config.Topic)
}
