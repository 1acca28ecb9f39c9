// Package config - YAML configuration for the detect CLI and server.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// DefaultMean is the ImageNet channel mean in BGR order.
	DefaultMean = [3]float32{123.675, 116.28, 103.53}
	// DefaultStd is the ImageNet channel standard deviation in BGR order.
	DefaultStd = [3]float32{58.395, 57.12, 57.375}
)

// Config is the full application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Provider   providers.Config `yaml:"provider"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Decode     DecodeConfig     `yaml:"decode"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// ModelConfig selects the model file and its output convention.
type ModelConfig struct {
	Path string `yaml:"path"`
	// Plugin is amirstan, faster_rcnn or mmdeploy.
	Plugin string `yaml:"plugin"`
	// Device is host or gpu and selects where outputs are decoded.
	Device string `yaml:"device"`
	// ClassNames lists labels by class id, or names one built-in set such as [coco].
	ClassNames []string `yaml:"class_names"`
}

// PreprocessConfig holds input normalization settings.
type PreprocessConfig struct {
	Mean      [3]float32      `yaml:"mean"`
	Std       [3]float32      `yaml:"std"`
	Letterbox LetterboxConfig `yaml:"letterbox"`
}

// LetterboxConfig enables aspect-preserving resize before inference.
// Zero width or height means the model input size.
type LetterboxConfig struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
}

type DecodeConfig struct {
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	// NMS runs a second suppression pass when nms.iou_threshold is positive.
	NMS detection.NMSConfig `yaml:"nms"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// RegistryURL receives a periodic registration when set.
	RegistryURL string `yaml:"registry_url"`
	// AdvertiseAddr is the address sent to the registry; defaults to Addr.
	AdvertiseAddr    string        `yaml:"advertise_addr"`
	AnnounceInterval time.Duration `yaml:"announce_interval"`
}

// Default returns a configuration with every optional field set.
//
// Returns:
//   - Config: mmdeploy plugin on the host, CPU provider, ImageNet normalization.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Plugin: detection.MMDeployName,
			Device: "host",
		},
		Provider: providers.DefaultConfig(),
		Preprocess: PreprocessConfig{
			Mean: DefaultMean,
			Std:  DefaultStd,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			MaxUploadBytes:   32 << 20,
			AnnounceInterval: 5 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: A read, parse or validation error.
//
// @example
// cfg, err := config.Load("detect.yaml")
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if _, err := detection.ParserByName(c.Model.Plugin); err != nil {
		return errors.Wrap(err, "model.plugin")
	}
	if _, err := c.Device(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return errors.Wrap(err, "provider")
	}
	for i, s := range c.Preprocess.Std {
		if s == 0 {
			return errors.Errorf("preprocess.std[%d] must not be zero", i)
		}
	}
	lb := c.Preprocess.Letterbox
	if lb.Width < 0 || lb.Height < 0 {
		return errors.Errorf("preprocess.letterbox size must not be negative, got %dx%d", lb.Width, lb.Height)
	}
	if t := c.Decode.ConfidenceThreshold; t < 0 || t > 1 {
		return errors.Errorf("decode.confidence_threshold must be in [0,1], got %v", t)
	}
	if t := c.Decode.NMS.IoUThreshold; t < 0 || t > 1 {
		return errors.Errorf("decode.nms.iou_threshold must be in [0,1], got %v", t)
	}
	if c.Server.MaxUploadBytes < 0 {
		return errors.New("server.max_upload_bytes must not be negative")
	}
	if c.Server.RegistryURL != "" && c.Server.AnnounceInterval <= 0 {
		return errors.Errorf("server.announce_interval must be positive, got %s", c.Server.AnnounceInterval)
	}
	return nil
}

// ClassNames resolves model.class_names, expanding a single built-in set name.
func (c Config) ClassNames() []string {
	if len(c.Model.ClassNames) == 1 {
		if set, ok := detection.ClassSet(c.Model.ClassNames[0]); ok {
			return set
		}
	}
	return c.Model.ClassNames
}

// Parser returns the configured output parser.
func (c Config) Parser() (detection.Parser, error) {
	return detection.ParserByName(c.Model.Plugin)
}

// Device maps model.device to an inference device.
func (c Config) Device() (inference.Device, error) {
	switch strings.ToLower(c.Model.Device) {
	case "", "host", "cpu":
		return inference.Host, nil
	case "gpu", "cuda", "device":
		return inference.GPU, nil
	default:
		return inference.Host, errors.Errorf("unsupported model.device %q", c.Model.Device)
	}
}
