// Package config reads the service settings from the environment and
// builds the spreadsheet store they describe.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.alis.build/alog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/directory"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store/gsheets"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store/xlsx"
)

// DefaultMasterConfigID is the master spreadsheet used when
// MASTER_CONFIG_ID is unset.
const DefaultMasterConfigID = "1ZAU_kvQEc6_B6-dwL6QdvbUpWkN52kE1zVQHcxBG7Lk"

// Store backends.
const (
	StoreGoogle = "google"
	StoreXLSX   = "xlsx"
)

// ErrNoCredentials is returned when the google store has no service
// account configured.
var ErrNoCredentials = errors.New("service account credentials not configured (set SERVICE_ACCOUNT_JSON or SERVICE_ACCOUNT_FILE)")

// Config holds the service settings.
type Config struct {
	Addr               string
	MasterConfigID     string
	Store              string
	WorkbookDir        string
	ServiceAccountJSON string
	ServiceAccountFile string
	CacheTTL           time.Duration
	UsersFile          string
	LogLevel           string
}

// FromEnv returns the configuration described by the environment, with
// defaults for anything unset.
func FromEnv() (Config, error) {
	c := Config{
		Addr:               env("ADDR", ":8080"),
		MasterConfigID:     env("MASTER_CONFIG_ID", DefaultMasterConfigID),
		Store:              env("STORE", StoreGoogle),
		WorkbookDir:        env("WORKBOOK_DIR", "workbooks"),
		ServiceAccountJSON: os.Getenv("SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("SERVICE_ACCOUNT_FILE"),
		CacheTTL:           directory.DefaultTTL,
		UsersFile:          os.Getenv("USERS_FILE"),
		LogLevel:           env("LOG_LEVEL", "info"),
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.CacheTTL = ttl
	}
	return c, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if c.MasterConfigID == "" {
		return errors.New("master config id is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	switch c.Store {
	case StoreGoogle:
	case StoreXLSX:
		if c.WorkbookDir == "" {
			return errors.New("workbook dir is required for the xlsx store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreGoogle, StoreXLSX)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Credentials returns the service account key, preferring the inline JSON
// over the file.
func (c Config) Credentials() ([]byte, error) {
	if strings.TrimSpace(c.ServiceAccountJSON) != "" {
		return []byte(c.ServiceAccountJSON), nil
	}
	if c.ServiceAccountFile != "" {
		b, err := os.ReadFile(c.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("service account file: %w", err)
		}
		return b, nil
	}
	return nil, ErrNoCredentials
}

// NewStore builds the configured store backend.
func (c Config) NewStore(ctx context.Context) (store.Store, error) {
	switch c.Store {
	case StoreXLSX:
		if err := os.MkdirAll(c.WorkbookDir, 0o755); err != nil {
			return nil, fmt.Errorf("workbook dir: %w", err)
		}
		alog.Infof(ctx, "config: using xlsx workbooks in %s", c.WorkbookDir)
		return xlsx.New(c.WorkbookDir), nil
	case StoreGoogle:
		creds, err := c.Credentials()
		if err != nil {
			return nil, err
		}
		s, err := gsheets.New(ctx,
			option.WithCredentialsJSON(creds),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
		if err != nil {
			return nil, fmt.Errorf("sheets client: %w", err)
		}
		alog.Infof(ctx, "config: using google sheets")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
}

// ParseLevel maps a level name to an alog level.
func ParseLevel(name string) (alog.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return alog.LevelDebug, nil
	case "", "info":
		return alog.LevelInfo, nil
	case "notice":
		return alog.LevelNotice, nil
	case "warn", "warning":
		return alog.LevelWarning, nil
	case "error":
		return alog.LevelError, nil
	default:
		return alog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
