// Package config loads the application configuration from a yaml file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/theeshop/listingbot/internal/output"
)

// BrowserConfig configures the browser driver shared by all sessions.
type BrowserConfig struct {
	Driver       string `yaml:"driver" env:"LISTINGBOT_DRIVER" env-default:"chromedp"`
	Headless     bool   `yaml:"headless" env:"LISTINGBOT_HEADLESS"`
	UserAgent    string `yaml:"user_agent" env:"LISTINGBOT_USER_AGENT"`
	ExecPath     string `yaml:"exec_path" env:"LISTINGBOT_BROWSER_PATH"`
	WindowWidth  int    `yaml:"window_width" env-default:"1920"`
	WindowHeight int    `yaml:"window_height" env-default:"1080"`
}

// WorkflowConfig holds the urls and pacing of a listing run.
type WorkflowConfig struct {
	CreateURL   string        `yaml:"create_url" env:"LISTINGBOT_CREATE_URL" env-default:"https://www.etsy.com/your/shops/me/listing-editor/create"`
	LoginURL    string        `yaml:"login_url" env:"LISTINGBOT_LOGIN_URL" env-default:"https://www.etsy.com/signin"`
	StepTimeout time.Duration `yaml:"step_timeout" env-default:"8s"`
	Settle      time.Duration `yaml:"settle" env-default:"200ms"`
	PhotoSettle time.Duration `yaml:"photo_settle" env-default:"1500ms"`
	HoldOpen    time.Duration `yaml:"hold_open" env:"LISTINGBOT_HOLD_OPEN"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"LISTINGBOT_ADDR" env-default:":8080"`
}

// ImageEditConfig configures the background removal and scene service.
type ImageEditConfig struct {
	BaseURL       string  `yaml:"base_url" env-default:"https://api.claid.ai"`
	RatePerSecond float64 `yaml:"rate_per_second" env-default:"2"`
}

type ObjectStoreConfig struct {
	Bucket string `yaml:"bucket" env:"LISTINGBOT_S3_BUCKET"`
	Region string `yaml:"region" env:"AWS_REGION" env-default:"eu-north-1"`
	Prefix string `yaml:"prefix" env-default:"uploads"`
}

type DescribeConfig struct {
	URL   string `yaml:"url" env:"LISTINGBOT_DESCRIBE_URL"`
	Model string `yaml:"model" env-default:"gemini-2.0-flash"`
}

// Config defines the overall structure of the configuration. Values will
// be taken from a config yml file or environment variables or both.
type Config struct {
	ProfilesDir    string              `yaml:"profiles_dir" env:"LISTINGBOT_PROFILES_DIR" env-default:"profiles"`
	DiagnosticsDir string              `yaml:"diagnostics_dir" env:"LISTINGBOT_DIAGNOSTICS_DIR" env-default:"screenshots"`
	DatabasePath   string              `yaml:"database" env:"LISTINGBOT_DB" env-default:"listingbot.db"`
	ProductsDir    string              `yaml:"products_dir" env:"LISTINGBOT_PRODUCTS_DIR" env-default:"products"`
	SecretsFile    string              `yaml:"secrets_file" env:"LISTINGBOT_SECRETS" env-default:"listingbot.secrets.json"`
	Browser        BrowserConfig       `yaml:"browser"`
	Workflow       WorkflowConfig      `yaml:"workflow"`
	Server         ServerConfig        `yaml:"server"`
	Writer         output.WriterConfig `yaml:"writer"`
	ImageEdit      ImageEditConfig     `yaml:"image_edit"`
	ObjectStore    ObjectStoreConfig   `yaml:"object_store"`
	Describe       DescribeConfig      `yaml:"describe"`
}

// NewConfig reads the config file at configPath. A missing file is not an
// error, the defaults and the environment are used instead.
func NewConfig(configPath string) (*Config, error) {
	var config Config
	if configPath != "" {
		_, err := os.Stat(configPath)
		if err == nil {
			if err := cleanenv.ReadConfig(configPath, &config); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
			return &config, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &config, nil
}
