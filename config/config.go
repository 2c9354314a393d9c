package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanwang67/userinfo/codec"
	"gopkg.in/yaml.v3"
)

// Config structure for loading config.json or config.yaml.
type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	Client  Client  `json:"client" yaml:"client"`
	Gateway Gateway `json:"gateway" yaml:"gateway"`
	Bench   Bench   `json:"bench" yaml:"bench"`
}

type Server struct {
	Id        uint64     `json:"id" yaml:"id"`
	Network   string     `json:"network" yaml:"network"`
	Address   string     `json:"address" yaml:"address"`
	Workers   int        `json:"workers" yaml:"workers"`
	QueueSize int        `json:"queue_size" yaml:"queue_size"`
	Codec     codec.Name `json:"codec" yaml:"codec"`
}

type Client struct {
	Id          uint64     `json:"id" yaml:"id"`
	Network     string     `json:"network" yaml:"network"`
	Address     string     `json:"address" yaml:"address"`
	Codec       codec.Name `json:"codec" yaml:"codec"`
	Name        string     `json:"name" yaml:"name"`
	DialTimeout Duration   `json:"dial_timeout" yaml:"dial_timeout"`
	CallTimeout Duration   `json:"call_timeout" yaml:"call_timeout"`
}

type Gateway struct {
	Address string `json:"address" yaml:"address"`
}

type Bench struct {
	Calls       int     `json:"calls" yaml:"calls"`
	Concurrency int     `json:"concurrency" yaml:"concurrency"`
	ZipfS       float64 `json:"zipf_s" yaml:"zipf_s"`
	ZipfV       uint64  `json:"zipf_v" yaml:"zipf_v"`
	CSV         string  `json:"csv" yaml:"csv"`
	Plot        string  `json:"plot" yaml:"plot"`
}

// Duration is a time.Duration written as "5s", "250ms" and so on.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() Config {
	return Config{
		Server: Server{
			Network:   "tcp",
			Address:   ":50051",
			Workers:   10,
			QueueSize: 100,
			Codec:     codec.Proto,
		},
		Client: Client{
			Network:     "tcp",
			Address:     "localhost:50051",
			Codec:       codec.Proto,
			Name:        "Alice",
			DialTimeout: Duration{5 * time.Second},
			CallTimeout: Duration{10 * time.Second},
		},
		Gateway: Gateway{
			Address: ":8080",
		},
		Bench: Bench{
			Calls:       1000,
			Concurrency: 16,
			ZipfS:       1.01,
			ZipfV:       1000,
		},
	}
}

// Load reads a JSON or YAML file over the defaults. The format follows the
// file extension.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("could not read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return config, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return config, fmt.Errorf("could not parse config file: %w", err)
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is empty"))
	}
	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server workers must be positive, got %d", c.Server.Workers))
	}
	if c.Server.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("server queue size must not be negative, got %d", c.Server.QueueSize))
	}
	if c.Client.Address == "" {
		errs = append(errs, errors.New("client address is empty"))
	}
	if c.Client.DialTimeout.Duration < 0 || c.Client.CallTimeout.Duration < 0 {
		errs = append(errs, errors.New("client timeouts must not be negative"))
	}
	if c.Bench.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("bench concurrency must be positive, got %d", c.Bench.Concurrency))
	}
	return errors.Join(errs...)
}
