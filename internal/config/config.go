package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Evaluator struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"evaluator"`
	Leaderboard struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"leaderboard"`
	Game struct {
		MaxRounds          int    `yaml:"max_rounds"`
		RoundDuration      string `yaml:"round_duration"`
		ResultDelay        string `yaml:"result_delay"`
		TimeoutResultDelay string `yaml:"timeout_result_delay"`
		ImageSelection     string `yaml:"image_selection"` // sequential | random
		ScoringPolicy      string `yaml:"scoring_policy"`  // evaluator | keyword
	} `yaml:"game"`
	Images struct {
		Dir string `yaml:"dir"`
		TTL string `yaml:"ttl"`
	} `yaml:"images"`
	Fixtures struct {
		TTL string `yaml:"ttl"`
	} `yaml:"fixtures"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Evaluator.BaseURL = "http://localhost:5001"
	cfg.Evaluator.Timeout = "45s"
	cfg.Leaderboard.BaseURL = "http://localhost:5002"
	cfg.Leaderboard.Timeout = "10s"
	cfg.Game.MaxRounds = 5
	cfg.Game.RoundDuration = "60s"
	cfg.Game.ResultDelay = "3s"
	cfg.Game.TimeoutResultDelay = "2s"
	cfg.Game.ImageSelection = "sequential"
	cfg.Game.ScoringPolicy = "evaluator"
	cfg.Images.Dir = "public"
	cfg.Images.TTL = "30m"
	cfg.Fixtures.TTL = "10m"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
