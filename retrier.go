package tirelog

import (
	"context"
	"time"

	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var retrySleep = time.Second

// Retryable is a source that can be reopened after it fails.
type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

var errStarting = errors.New("starting")

// retry keeps r running until ctx is done, closing and reopening it after
// every error.
func retry(ctx context.Context, r Retryable, m *metrics.Metrics) error {
	err := errStarting
	for {
		select {
		case <-ctx.Done():
			if closeErr := r.Close(); closeErr != nil {
				log.WithField("err", closeErr).Warnf("%s: unable to close", r.Name())
			}
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).Errorf("%s: reconnecting due to error", r.Name())
				m.Reconnect(r.Name())
				if err = r.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", r.Name())
				}
				select {
				case <-time.After(retrySleep):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			err = r.Open()
			if err != nil {
				err = errors.Wrapf(err, "%s: open", r.Name())
				continue
			}
		}
		err = r.Start(ctx)
	}
}
