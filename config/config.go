package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/hb9tf/fieldsense/jamming"
)

const envPrefix = "FIELDSENSE"

const (
	DeliveryHTTP  = "http"
	DeliveryMQTT  = "mqtt"
	DeliveryKafka = "kafka"
)

type Config struct {
	SensorID    string        `mapstructure:"sensor_id"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`

	Delivery struct {
		Kind     string        `mapstructure:"kind"`
		Endpoint string        `mapstructure:"endpoint"`
		Timeout  time.Duration `mapstructure:"timeout"`
		MQTT     struct {
			Broker string `mapstructure:"broker"`
			Topic  string `mapstructure:"topic"`
		} `mapstructure:"mqtt"`
		Kafka struct {
			Brokers []string `mapstructure:"brokers"`
			Topic   string   `mapstructure:"topic"`
		} `mapstructure:"kafka"`
	} `mapstructure:"delivery"`

	BLE struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"ble"`

	WiFi struct {
		Enabled   bool   `mapstructure:"enabled"`
		Interface string `mapstructure:"interface"`
		Sudo      bool   `mapstructure:"sudo"`
	} `mapstructure:"wifi"`

	Deauth struct {
		Enabled   bool   `mapstructure:"enabled"`
		Interface string `mapstructure:"interface"`
	} `mapstructure:"deauth"`

	Jamming struct {
		Enabled   bool    `mapstructure:"enabled"`
		Interface string  `mapstructure:"interface"`
		Threshold float64 `mapstructure:"threshold"`
	} `mapstructure:"jamming"`

	GPS struct {
		Enabled     bool          `mapstructure:"enabled"`
		Device      string        `mapstructure:"device"`
		Baud        int           `mapstructure:"baud"`
		MaxAttempts int           `mapstructure:"max_attempts"`
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		Prefix      string        `mapstructure:"prefix"`
	} `mapstructure:"gps"`

	Alerts struct {
		Burst      Rule `mapstructure:"burst"`
		LowTraffic Rule `mapstructure:"low_traffic"`
	} `mapstructure:"alerts"`

	Filter struct {
		// MinSignal drops weaker ble and wifi observations, 0 disables it.
		MinSignal int `mapstructure:"min_signal"`
	} `mapstructure:"filter"`

	Metrics struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"metrics"`
}

type Rule struct {
	Enabled   bool `mapstructure:"enabled"`
	Threshold int  `mapstructure:"threshold"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sensor_id", "")
	v.SetDefault("scan_timeout", 10*time.Second)

	v.SetDefault("delivery.kind", DeliveryHTTP)
	v.SetDefault("delivery.endpoint", "")
	v.SetDefault("delivery.timeout", 5*time.Second)
	v.SetDefault("delivery.mqtt.broker", "")
	v.SetDefault("delivery.mqtt.topic", "fieldsense/scans")
	v.SetDefault("delivery.kafka.brokers", []string{})
	v.SetDefault("delivery.kafka.topic", "fieldsense-scans")

	v.SetDefault("ble.enabled", true)
	v.SetDefault("wifi.enabled", true)
	v.SetDefault("wifi.interface", "wlan0")
	v.SetDefault("wifi.sudo", true)
	v.SetDefault("deauth.enabled", true)
	v.SetDefault("deauth.interface", "wlan0mon")
	v.SetDefault("jamming.enabled", true)
	v.SetDefault("jamming.interface", "wlan0")
	v.SetDefault("jamming.threshold", jamming.DefaultThreshold)

	v.SetDefault("gps.enabled", false)
	v.SetDefault("gps.device", "/dev/ttyAMA0")
	v.SetDefault("gps.baud", 9600)
	v.SetDefault("gps.max_attempts", 10)
	v.SetDefault("gps.read_timeout", time.Second)
	v.SetDefault("gps.prefix", "$GPGGA")

	v.SetDefault("alerts.burst.enabled", true)
	v.SetDefault("alerts.burst.threshold", 50)
	v.SetDefault("alerts.low_traffic.enabled", true)
	v.SetDefault("alerts.low_traffic.threshold", 1)

	v.SetDefault("filter.min_signal", 0)
	v.SetDefault("metrics.listen", "")
}

// Load reads the configuration from defaults, the optional YAML file at path
// and FIELDSENSE_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %q: %w", path, err)
		}
		glog.V(1).Infof("loaded config from %s\n", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that prevents the sensor from running.
func (c *Config) Validate() error {
	if c.ScanTimeout <= 0 {
		return errors.New("scan_timeout must be positive")
	}
	if c.Delivery.Timeout <= 0 {
		return errors.New("delivery.timeout must be positive")
	}
	switch strings.ToLower(c.Delivery.Kind) {
	case DeliveryHTTP:
		if c.Delivery.Endpoint == "" {
			return errors.New("delivery.endpoint is required for http delivery")
		}
	case DeliveryMQTT:
		if c.Delivery.MQTT.Broker == "" || c.Delivery.MQTT.Topic == "" {
			return errors.New("delivery.mqtt.broker and delivery.mqtt.topic are required for mqtt delivery")
		}
	case DeliveryKafka:
		if len(c.Delivery.Kafka.Brokers) == 0 || c.Delivery.Kafka.Topic == "" {
			return errors.New("delivery.kafka.brokers and delivery.kafka.topic are required for kafka delivery")
		}
	default:
		return fmt.Errorf("%q is not a supported delivery kind, pick one of: http, mqtt, kafka", c.Delivery.Kind)
	}
	if c.GPS.Enabled {
		if c.GPS.MaxAttempts <= 0 {
			return errors.New("gps.max_attempts must be positive")
		}
		if c.GPS.ReadTimeout <= 0 {
			return errors.New("gps.read_timeout must be positive")
		}
		if c.GPS.Baud <= 0 {
			return errors.New("gps.baud must be positive")
		}
	}
	return nil
}
