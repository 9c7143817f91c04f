package application

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScheduleConfig defines the daily report schedule.
type ScheduleConfig struct {
	DailyAt     string   `yaml:"daily_at"`
	Restaurants []string `yaml:"restaurants"`
}

// Config defines report generation configuration.
type Config struct {
	StorageRoot   string         `yaml:"storage_root"`
	WebhookURL    string         `yaml:"webhook_url"`
	PublicBaseURL string         `yaml:"public_base_url"`
	Schedule      ScheduleConfig `yaml:"schedule"`
}

// LoadConfig loads report config from yaml plus env defaults. The yaml
// file path comes from REPORTS_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		StorageRoot:   getenvDefault("REPORTS_STORAGE_ROOT", filepath.FromSlash("var/reports/daily")),
		WebhookURL:    os.Getenv("REPORTS_WEBHOOK_URL"),
		PublicBaseURL: getenvDefault("REPORTS_PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	if path := os.Getenv("REPORTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("REPORTS_DAILY_AT", "05:00")
	}
	if len(cfg.Schedule.Restaurants) == 0 {
		cfg.Schedule.Restaurants = splitCSV(os.Getenv("REPORTS_RESTAURANTS"))
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("reports: storage root required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
