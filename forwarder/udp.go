package forwarder

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jd3nn1s/tirelog"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type UDPConfig struct {
	Server string
	Port   int
	// Interval limits the packet rate.
	Interval time.Duration
}

// UDPForwarder sends the latest record as a binary packet.
type UDPForwarder struct {
	mailbox
	Config *UDPConfig

	conn net.Conn
}

func NewUDPForwarder(config UDPConfig) (*UDPForwarder, error) {
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}
	udp := &UDPForwarder{
		mailbox: newMailbox(),
		Config:  &config,
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(udp.Config.Interval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case rec := <-udp.fwdChan:
			if err := udp.forward(rec); err != nil {
				log.WithField("err", err).Error("unable to forward record to server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(rec *tirelog.Record) error {
	b, err := NewRecordPacket(rec).MarshalBinary()
	if err != nil {
		return err
	}
	_, err = udp.conn.Write(b)
	return errors.Wrap(err, "unable to write udp packet")
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxRecordSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial udp server")
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
