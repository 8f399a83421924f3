package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Relay   RelayConfig   `mapstructure:"relay" json:"relay" yaml:"relay"`
	Tuner   TunerConfig   `mapstructure:"tuner" json:"tuner" yaml:"tuner"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging" yaml:"logging"`
	Remote  RemoteConfig  `mapstructure:"remote" json:"remote" yaml:"remote"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" json:"mqtt" yaml:"mqtt"`
}

// LabJack U12
type RelayConfig struct {
	VendorID     int           `mapstructure:"vendor_id" json:"vendor_id" yaml:"vendor_id"`
	ProductID    int           `mapstructure:"product_id" json:"product_id" yaml:"product_id"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
}

type TunerConfig struct {
	Device          string        `mapstructure:"device" json:"device" yaml:"device"`
	BaudRate        int           `mapstructure:"baud_rate" json:"baud_rate" yaml:"baud_rate"`
	FrameLayout     string        `mapstructure:"frame_layout" json:"frame_layout" yaml:"frame_layout"`
	ReadPoll        time.Duration `mapstructure:"read_poll" json:"read_poll" yaml:"read_poll"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout" json:"response_timeout" yaml:"response_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`
	File       string `mapstructure:"file" json:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"` // Tage
	Compress   bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
	Console    bool   `mapstructure:"console" json:"console" yaml:"console"`
}

// Remote panel (REST + WebSocket)
type RemoteConfig struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Listen          string        `mapstructure:"listen" json:"listen" yaml:"listen"`
	JWTSecretEnv    string        `mapstructure:"jwt_secret_env" json:"jwt_secret_env" yaml:"jwt_secret_env"`
	TokenTTL        time.Duration `mapstructure:"token_ttl" json:"token_ttl" yaml:"token_ttl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" json:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" json:"client_id" yaml:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" json:"topic_prefix" yaml:"topic_prefix"`
	QoS         int    `mapstructure:"qos" json:"qos" yaml:"qos"`
	Username    string `mapstructure:"username" json:"username" yaml:"username"`
	PasswordEnv string `mapstructure:"password_env" json:"password_env" yaml:"password_env"`
}

const EnvPrefix = "SHACK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.vendor_id", 0x0cd5)
	v.SetDefault("relay.product_id", 0x0001)
	v.SetDefault("relay.read_timeout", "500ms")
	v.SetDefault("relay.write_timeout", "500ms")

	v.SetDefault("tuner.device", "/dev/ttyACM0")
	v.SetDefault("tuner.baud_rate", 9600)
	v.SetDefault("tuner.frame_layout", "packed")
	v.SetDefault("tuner.read_poll", "100ms")
	v.SetDefault("tuner.response_timeout", "0s") // 0 = ohne Limit
	v.SetDefault("tuner.poll_interval", "200ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "shackctl.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", false)

	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.listen", ":8073")
	v.SetDefault("remote.jwt_secret_env", "SHACK_JWT_SECRET")
	v.SetDefault("remote.token_ttl", "720h")
	v.SetDefault("remote.shutdown_timeout", "5s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_prefix", "shack")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password_env", "SHACK_MQTT_PASSWORD")
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shackcontrol.yaml"
	}
	return filepath.Join(dir, "shackcontrol", "config.yaml")
}

// Load liest die Konfiguration. A missing file is not an error; the
// defaults and SHACK_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment Variables mit Prefix SHACK_, z.B. SHACK_TUNER_DEVICE
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &config
}

// WriteDefault schreibt die Default-Konfiguration als YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// JWT Secret aus Environment Variable laden. Empty disables remote auth.
func (r *RemoteConfig) JWTSecret() string {
	envVar := r.JWTSecretEnv
	if envVar == "" {
		envVar = "SHACK_JWT_SECRET"
	}
	return os.Getenv(envVar)
}

// AuthEnabled reports whether a usable secret is configured.
func (r *RemoteConfig) AuthEnabled() bool {
	return len(r.JWTSecret()) >= 32
}

func (m *MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}
