package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jd3nn1s/tirelog"
	"github.com/jd3nn1s/tirelog/config"
	"github.com/jd3nn1s/tirelog/forwarder"
	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/jd3nn1s/tirelog/web"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "tirelog.toml", "configuration file")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print the display to stdout")

// runner is a forwarder that delivers from its own go-routine.
type runner interface {
	tirelog.Forwarder
	Start(ctx context.Context) error
	Close() error
}

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	startedAt := time.Now()
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	if *testMode {
		cfg.TestMode = true
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	if cfg.DebugLog {
		f, err := openDebugLog(cfg.OutputDir, startedAt)
		if err != nil {
			log.Fatal("unable to open debug log: ", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := uuid.New().String()
	log.WithField("session", session).Info("starting tirelog")

	m := metrics.New()
	sink := tirelog.NewFileSink(cfg.OutputDir, startedAt)
	defer sink.Close()
	tl := tirelog.NewTireLog(tirelog.NewEmitter(sink))
	tl.SetMetrics(m)
	tl.SetSession(session)
	tl.SetTestMode(cfg.TestMode)
	tl.SetLogRows(cfg.LogRows)

	if !cfg.TestMode {
		addSources(tl, cfg, m)
	}

	for name, fwd := range forwarders(cfg, session) {
		go func(name string, fwd runner) {
			if err := fwd.Start(ctx); err != nil && err != context.Canceled {
				log.WithField("err", err).Errorf("%s forwarder stopped", name)
			}
		}(name, fwd)
		defer fwd.Close()
		tl.AddForwarder(name, fwd)
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(m)
		tl.AddForwarder("web", srv)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Web.Listen); err != nil && err != context.Canceled {
				log.WithField("err", err).Error("web server stopped")
			}
		}()
	}

	tl.Start(ctx)
	log.WithField("file", sink.Path).Info("recording")

	for {
		changed, err := tl.CheckChannels(ctx)
		if err != nil {
			log.Infof("shutting down: %v", err)
			return
		}
		if changed {
			if *printTelemetry {
				fmt.Print(tirelog.Project(tl.Record))
			}
			tl.TelemetryUpdate()
		}
	}
}

func addSources(tl *tirelog.TireLog, cfg *config.Config, m *metrics.Metrics) {
	switch cfg.GPS.Source {
	case config.GPSSkyTraq:
		tl.AddSource(tirelog.NewSkyTraqGPS(cfg.GPS.Port, tl.Locations()))
	case config.GPSNMEA:
		tl.AddSource(tirelog.NewNMEAGPS(cfg.GPS.Port, cfg.GPS.Baud, tl.Locations()))
	}

	if cfg.BLE.Enabled {
		scanner := tirelog.NewBLEScanner(tl.Advertisements(), m)
		tl.AddSource(scanner)
		tl.SetScanner(scanner)
	}

	if cfg.CAN.Enabled {
		bus := tirelog.NewCANBus(cfg.CAN.Port)
		tl.AddSource(bus)
		tl.AddForwarder("can", tirelog.NewCANForwarder(bus))
	}
}

func forwarders(cfg *config.Config, session string) map[string]runner {
	ret := map[string]runner{}
	if cfg.UDP.Enabled {
		fwd, err := forwarder.NewUDPForwarder(forwarder.UDPConfig{
			Server:   cfg.UDP.Server,
			Port:     cfg.UDP.Port,
			Interval: cfg.UDP.Interval.Duration,
		})
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		ret["udp"] = fwd
	}
	if cfg.MQTT.Enabled {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "tirelog-" + session[:8]
		}
		fwd, err := forwarder.NewMQTTForwarder(forwarder.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    clientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err != nil {
			log.Fatal("unable to load MQTT forwarder: ", err)
		}
		ret["mqtt"] = fwd
	}
	if cfg.Kafka.Enabled {
		fwd, err := forwarder.NewKafkaForwarder(forwarder.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Fatal("unable to load Kafka forwarder: ", err)
		}
		ret["kafka"] = fwd
	}
	return ret
}

func openDebugLog(dir string, startedAt time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, "log-"+startedAt.Format(tirelog.FileStampLayout)+".txt")
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
