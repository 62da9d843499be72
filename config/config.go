package config

import (
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	GPSSkyTraq = "skytraq"
	GPSNMEA    = "nmea"
	GPSNone    = "none"
)

type Config struct {
	OutputDir string `toml:"output_dir"`
	LogLevel  string `toml:"log_level"`
	LogRows   bool   `toml:"log_rows"`
	DebugLog  bool   `toml:"debug_log"`
	TestMode  bool   `toml:"test_mode"`

	GPS   GPSConfig   `toml:"gps"`
	BLE   BLEConfig   `toml:"ble"`
	Web   WebConfig   `toml:"web"`
	UDP   UDPConfig   `toml:"udp"`
	MQTT  MQTTConfig  `toml:"mqtt"`
	Kafka KafkaConfig `toml:"kafka"`
	CAN   CANConfig   `toml:"can"`
}

type GPSConfig struct {
	Source string `toml:"source"`
	Port   string `toml:"port"`
	Baud   uint   `toml:"baud"`
}

type BLEConfig struct {
	Enabled bool `toml:"enabled"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type UDPConfig struct {
	Enabled  bool     `toml:"enabled"`
	Server   string   `toml:"server"`
	Port     int      `toml:"port"`
	Interval Duration `toml:"interval"`
}

type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         byte   `toml:"qos"`
}

type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type CANConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    string `toml:"port"`
}

// Duration reads TOML strings such as "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

func Default() Config {
	return Config{
		OutputDir: ".",
		LogLevel:  "info",
		GPS: GPSConfig{
			Source: GPSSkyTraq,
			Port:   "/dev/ttyUSB0",
			Baud:   9600,
		},
		BLE: BLEConfig{
			Enabled: true,
		},
		Web: WebConfig{
			Listen: ":8080",
		},
		UDP: UDPConfig{
			Interval: Duration{100 * time.Millisecond},
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "tirelog",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "tirelog.records",
		},
		CAN: CANConfig{
			Port: "can0",
		},
	}
}

// Load reads a config file. A missing file yields the defaults.
func Load(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if os.IsNotExist(err) {
		log.WithField("file", fileName).Info("no config file, using defaults")
		cfg := Default()
		return &cfg, cfg.Validate()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadFromReader(file)
}

func LoadFromReader(configReader io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(configReader).Decode(&cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}
	for _, key := range md.Undecoded() {
		log.WithField("key", key.String()).Warn("unknown configuration key")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir must be set")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	switch c.GPS.Source {
	case GPSSkyTraq, GPSNMEA:
		if c.GPS.Port == "" {
			return errors.Errorf("gps.port must be set for source %s", c.GPS.Source)
		}
	case GPSNone:
	default:
		return errors.Errorf("unknown gps.source %q", c.GPS.Source)
	}
	if c.GPS.Source == GPSNMEA && c.GPS.Baud == 0 {
		return errors.New("gps.baud must be set for nmea")
	}
	if c.Web.Enabled && c.Web.Listen == "" {
		return errors.New("web.listen must be set")
	}
	if c.UDP.Enabled && (c.UDP.Server == "" || c.UDP.Port <= 0) {
		return errors.New("udp.server and udp.port must be set")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker must be set")
		}
		if c.MQTT.QoS > 2 {
			return errors.Errorf("invalid mqtt.qos %d", c.MQTT.QoS)
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic must be set")
	}
	if c.CAN.Enabled && c.CAN.Port == "" {
		return errors.New("can.port must be set")
	}
	return nil
}
