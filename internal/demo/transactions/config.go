package transactions

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	OutputDir      string
	DataFile       string
	DictionaryFile string
	Rows           int
	Accounts       int
	Seed           int64
	StartDate      time.Time
	Upload         bool
	UploadPrefix   string
}

func DefaultConfig() Config {
	return Config{
		OutputDir:      ".",
		DataFile:       "transactions.csv",
		DictionaryFile: "data_dict.csv",
		Rows:           500,
		Accounts:       3,
		Seed:           42,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Upload:         false,
		UploadPrefix:   "demo",
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "DUCKCHAT_DEMO_OUTPUT_DIR", &cfg.OutputDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKCHAT_DEMO_DATA_FILE", &cfg.DataFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKCHAT_DEMO_DICTIONARY_FILE", &cfg.DictionaryFile); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKCHAT_DEMO_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKCHAT_DEMO_ACCOUNTS", &cfg.Accounts); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "DUCKCHAT_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "DUCKCHAT_DEMO_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKCHAT_DEMO_UPLOAD", &cfg.Upload); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKCHAT_DEMO_UPLOAD_PREFIX", &cfg.UploadPrefix); err != nil {
		return Config{}, err
	}

	if cfg.OutputDir == "" {
		return Config{}, fmt.Errorf("DUCKCHAT_DEMO_OUTPUT_DIR is required")
	}
	if cfg.DataFile == "" || cfg.DictionaryFile == "" {
		return Config{}, fmt.Errorf("DUCKCHAT_DEMO_DATA_FILE and DUCKCHAT_DEMO_DICTIONARY_FILE are required")
	}
	if cfg.DataFile == cfg.DictionaryFile {
		return Config{}, fmt.Errorf("data and dictionary files must differ")
	}
	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("DUCKCHAT_DEMO_ROWS must be > 0")
	}
	if cfg.Accounts <= 0 {
		return Config{}, fmt.Errorf("DUCKCHAT_DEMO_ACCOUNTS must be > 0")
	}
	cfg.UploadPrefix = strings.Trim(cfg.UploadPrefix, "/")
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
