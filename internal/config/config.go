package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"

	defaultPath = "./config/config.yaml"
)

var (
	errConfigIsDir = errors.New("config path is dir")
)

// Path is the value of the -config flag.
type Path string

type Config struct {
	Env     string  `yaml:"env" env:"ENV" env-default:"local"`
	Landing Landing `yaml:"landing"`
	Admin   Admin   `yaml:"admin"`
	Backend Backend `yaml:"backend"`
	Store   Store   `yaml:"store"`
	Guard   Guard   `yaml:"guard"`
}

type Landing struct {
	Host string `yaml:"host" env:"LANDING_HOST" env-default:"localhost"`
	Port int    `yaml:"port" env:"LANDING_PORT" env-default:"8123"`

	DownloadURL string `yaml:"download_url" env:"LANDING_DOWNLOAD_URL" env-default:"/download"`
}

func (l Landing) Addr() string { return net.JoinHostPort(l.Host, strconv.Itoa(l.Port)) }

type Admin struct {
	Host         string `yaml:"host" env:"ADMIN_HOST" env-default:"localhost"`
	Port         int    `yaml:"port" env:"ADMIN_PORT" env-default:"8124"`
	LoginPath    string `yaml:"login_path" env:"ADMIN_LOGIN_PATH" env-default:"/login"`
	LandingPath  string `yaml:"landing_path" env:"ADMIN_LANDING_PATH" env-default:"/dashboard"`
	CookieSecure bool   `yaml:"cookie_secure" env:"ADMIN_COOKIE_SECURE"`
}

func (a Admin) Addr() string { return net.JoinHostPort(a.Host, strconv.Itoa(a.Port)) }

type Backend struct {
	BaseURL string        `yaml:"base_url" env:"BACKEND_URL" env-default:"http://localhost:5000/api"`
	Timeout time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"10s"`
	Breaker Breaker       `yaml:"breaker"`
}

type Breaker struct {
	MaxRequests  uint32        `yaml:"max_requests" env:"BREAKER_MAX_REQUESTS" env-default:"5"`
	Interval     time.Duration `yaml:"interval" env:"BREAKER_INTERVAL" env-default:"30s"`
	Timeout      time.Duration `yaml:"timeout" env:"BREAKER_TIMEOUT" env-default:"15s"`
	MinRequests  uint32        `yaml:"min_requests" env:"BREAKER_MIN_REQUESTS" env-default:"5"`
	FailureRatio float64       `yaml:"failure_ratio" env:"BREAKER_FAILURE_RATIO" env-default:"0.6"`
}

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	Path   string `yaml:"path" env:"STORE_PATH" env-default:"./data/session.json"`
	Redis  Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"datingadmin"`
}

type Guard struct {
	Interval time.Duration `yaml:"interval" env:"GUARD_INTERVAL" env-default:"5m"`
}

// New loads the config from, in order: the -config flag, CONFIG_PATH,
// ./config/config.yaml, and finally the environment alone. Environment
// variables always override file values.
func New(path Path) (*Config, error) {
	p := string(path)
	if p == "" {
		p = os.Getenv("CONFIG_PATH")
	}
	if p == "" {
		if _, err := os.Stat(defaultPath); err == nil {
			p = defaultPath
		}
	}

	var cfg Config
	if p != "" {
		if err := readFile(p, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env: %w", err)
	}

	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	filename, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	finfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("config file %q stat failed: %w", path, err)
	}
	if finfo.IsDir() {
		return errConfigIsDir
	}

	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
