// Package config loads and validates the service configuration from a YAML
// file, a .env file, and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/memovox/llm/openai"
	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/observability"
	"github.com/skillsenselab/memovox/server"
	"github.com/skillsenselab/memovox/transcription/whisper"
)

// StoreConfig configures recording persistence.
type StoreConfig struct {
	// Driver selects the backing store: "sqlite" or "memory".
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=sqlite memory"`
	// Path is the SQLite database file path.
	Path string `mapstructure:"path"`
}

// ApplyDefaults applies default values.
func (c *StoreConfig) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.Path == "" {
		c.Path = "memovox.db"
	}
}

// QueueConfig configures the transcription pipeline.
type QueueConfig struct {
	// Language is the recognition language hint passed to the speech server.
	Language string `mapstructure:"language"`
	// InitialPrompt biases recognition toward domain vocabulary.
	InitialPrompt string `mapstructure:"initial_prompt"`
	// RecoverProcessing resets recordings stuck in PROCESSING back to
	// PENDING at startup so an interrupted run resumes them.
	RecoverProcessing bool `mapstructure:"recover_processing"`
	// ProgressInterval is the minimum gap between persisted progress updates.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	// MergeTarget is the target merged segment length in seconds for reads.
	MergeTarget float64 `mapstructure:"merge_target" validate:"min=0"`
}

// ApplyDefaults applies default values.
func (c *QueueConfig) ApplyDefaults() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = 500 * time.Millisecond
	}
	if c.MergeTarget == 0 {
		c.MergeTarget = 60
	}
}

// MediaConfig configures audio conversion.
type MediaConfig struct {
	FFmpegBinary  string `mapstructure:"ffmpeg_binary"`
	FFprobeBinary string `mapstructure:"ffprobe_binary"`
}

// ApplyDefaults applies default values.
func (c *MediaConfig) ApplyDefaults() {
	if c.FFmpegBinary == "" {
		c.FFmpegBinary = "ffmpeg"
	}
	if c.FFprobeBinary == "" {
		c.FFprobeBinary = "ffprobe"
	}
}

// Config is the full service configuration.
type Config struct {
	Environment string               `mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Logger      logger.Config        `mapstructure:"logger"`
	Telemetry   observability.Config `mapstructure:"telemetry"`
	Server      server.Config        `mapstructure:"server"`
	Store       StoreConfig          `mapstructure:"store"`
	Queue       QueueConfig          `mapstructure:"queue"`
	Media       MediaConfig          `mapstructure:"media"`
	Whisper     whisper.Config       `mapstructure:"whisper"`
	OpenAI      openai.Config        `mapstructure:"openai"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logger.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.Queue.ApplyDefaults()
	c.Media.ApplyDefaults()
	c.Whisper.ApplyDefaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Whisper.Validate(); err != nil {
		return err
	}
	return nil
}
