package config

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/logs"
)

const (
	CurrentVersion = 1
	DefaultPath    = "mutenix.yaml"
	envPrefix      = "MUTENIX"
)

type Config struct {
	Version               int                    `mapstructure:"version" yaml:"version"`
	DeviceIdentifications []DeviceIdentification `mapstructure:"device_identifications" yaml:"device_identifications"`
	Service               Service                `mapstructure:"service" yaml:"service"`
	Status                Status                 `mapstructure:"status" yaml:"status"`
	Logging               Logging                `mapstructure:"logging" yaml:"logging"`
}

// DeviceIdentification selects a macropad. Zero vendor and product ids
// with a serial number match on the serial alone.
type DeviceIdentification struct {
	VendorID     uint16 `mapstructure:"vendor_id" yaml:"vendor_id"`
	ProductID    uint16 `mapstructure:"product_id" yaml:"product_id"`
	SerialNumber string `mapstructure:"serial_number" yaml:"serial_number,omitempty"`
}

type Service struct {
	URI          string `mapstructure:"uri" yaml:"uri"`
	Manufacturer string `mapstructure:"manufacturer" yaml:"manufacturer"`
	Device       string `mapstructure:"device" yaml:"device"`
	App          string `mapstructure:"app" yaml:"app"`
	AppVersion   string `mapstructure:"app_version" yaml:"app_version"`
	Token        string `mapstructure:"token" yaml:"token"`
}

type Status struct {
	Address string `mapstructure:"address" yaml:"address"`
}

type Logging struct {
	Level           string `mapstructure:"level" yaml:"level"`
	ConsoleEnabled  bool   `mapstructure:"console_enabled" yaml:"console_enabled"`
	FileEnabled     bool   `mapstructure:"file_enabled" yaml:"file_enabled"`
	FilePath        string `mapstructure:"file_path" yaml:"file_path"`
	FileMaxSize     int64  `mapstructure:"file_max_size" yaml:"file_max_size"`
	FileBackupCount int    `mapstructure:"file_backup_count" yaml:"file_backup_count"`
}

func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Service: Service{
			URI:          "ws://127.0.0.1:8124",
			Manufacturer: "Mutenix",
			Device:       "Macropad",
			App:          "mutenixd",
		},
		Status: Status{
			Address: "127.0.0.1:12909",
		},
		Logging: Logging{
			Level:           "info",
			ConsoleEnabled:  true,
			FilePath:        "mutenix.log",
			FileMaxSize:     3145728,
			FileBackupCount: 5,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an
// error. Scalar settings can be overridden from the environment, e.g.
// MUTENIX_SERVICE_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	conf := Default()
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if conf.Version > CurrentVersion {
		return nil, errors.Errorf("config version %d is newer than supported version %d", conf.Version, CurrentVersion)
	}
	return conf, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("version", c.Version)
	v.SetDefault("service.uri", c.Service.URI)
	v.SetDefault("service.manufacturer", c.Service.Manufacturer)
	v.SetDefault("service.device", c.Service.Device)
	v.SetDefault("service.app", c.Service.App)
	v.SetDefault("service.app_version", c.Service.AppVersion)
	v.SetDefault("service.token", c.Service.Token)
	v.SetDefault("status.address", c.Status.Address)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.console_enabled", c.Logging.ConsoleEnabled)
	v.SetDefault("logging.file_enabled", c.Logging.FileEnabled)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.file_max_size", c.Logging.FileMaxSize)
	v.SetDefault("logging.file_backup_count", c.Logging.FileBackupCount)
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0600), "writing %s", path)
}

// SetToken stores a token handed out by the meeting service. It is used
// from the next connection on.
func (c *Config) SetToken(token string) bool {
	if c.Service.Token == token {
		return false
	}
	c.Service.Token = token
	return true
}

func (c *Config) Identities() []core.DeviceIdentity {
	ids := make([]core.DeviceIdentity, 0, len(c.DeviceIdentifications))
	for _, d := range c.DeviceIdentifications {
		ids = append(ids, core.DeviceIdentity{
			VendorID:  d.VendorID,
			ProductID: d.ProductID,
			Serial:    d.SerialNumber,
		})
	}
	return ids
}

func (c *Config) LogOptions(verbose bool) logs.Options {
	return logs.Options{
		Level:           c.Logging.Level,
		Verbose:         verbose,
		Console:         c.Logging.ConsoleEnabled,
		File:            c.Logging.FileEnabled,
		FilePath:        c.Logging.FilePath,
		FileMaxSize:     c.Logging.FileMaxSize,
		FileBackupCount: c.Logging.FileBackupCount,
	}
}
