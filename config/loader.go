package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MEMOVOX"

// Load reads the configuration. Values are layered, later sources winning:
// the YAML config file, the .env file, then process environment variables
// (prefixed with MEMOVOX_, nested keys joined with underscores, e.g.
// MEMOVOX_WHISPER_URL). Empty paths fall back to a search of standard
// locations; a missing file is not an error.
func Load(configFile, envFile string) (*Config, error) {
	if configFile == "" {
		configFile = findFirst(
			"./config.yml",
			"./config/config.yml",
			"./cmd/memovox/config.yml",
		)
	}
	if envFile == "" {
		envFile = findFirst(".env", "../.env")
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load %s: %v\n", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind every known key explicitly.
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func configKeys() []string {
	return []string{
		"environment",
		"logger.level",
		"logger.format",
		"logger.output",
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.endpoint",
		"telemetry.insecure",
		"telemetry.metric_interval",
		"server.host",
		"server.port",
		"server.mode",
		"server.read_timeout",
		"server.write_timeout",
		"store.driver",
		"store.path",
		"queue.language",
		"queue.initial_prompt",
		"queue.recover_processing",
		"queue.progress_interval",
		"queue.merge_target",
		"media.ffmpeg_binary",
		"media.ffprobe_binary",
		"whisper.url",
		"whisper.upload",
		"whisper.framing",
		"whisper.username",
		"whisper.password",
		"openai.base_url",
		"openai.api_key",
		"openai.model",
		"openai.temperature",
		"openai.timeout",
	}
}
