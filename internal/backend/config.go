package backend

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mnyxls/internal/config"
)

// Config holds configuration for sink creation
type Config struct {
	// Excel output
	XLSXPath     string
	XLSXTemplate string

	// SQLite output
	SQLiteDBPath string

	// Google Sheets output
	Google config.GoogleConfig
}

// FromAppConfig converts the application config to backend config. The
// skip flags come from the command line.
func FromAppConfig(appConfig *config.Config, noXLS, noDB bool) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{Google: appConfig.Google}
	if !noXLS {
		c.XLSXPath = appConfig.XLSFile
		c.XLSXTemplate = appConfig.XLSTemplate
	}
	if !noDB {
		c.SQLiteDBPath = appConfig.DBFile
	}
	return c, c.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.XLSXPath != "" {
		if ext := strings.ToLower(filepath.Ext(c.XLSXPath)); ext != ".xlsx" {
			return fmt.Errorf("xls_file must end in .xlsx, got %q", c.XLSXPath)
		}
	}
	if c.XLSXTemplate != "" && c.XLSXPath == "" {
		return errors.New("xls_template requires xls_file")
	}
	if c.XLSXTemplate != "" && filepath.Clean(c.XLSXTemplate) == filepath.Clean(c.XLSXPath) {
		return errors.New("xls_template and xls_file must differ")
	}
	if c.SQLiteDBPath != "" && filepath.Clean(c.SQLiteDBPath) == filepath.Clean(c.XLSXPath) {
		return errors.New("db_file and xls_file must differ")
	}
	return nil
}

// Types lists the sinks the configuration enables, in write order.
func (c Config) Types() []BackendType {
	var out []BackendType
	if c.XLSXPath != "" {
		out = append(out, XLSXBackend)
	}
	if strings.TrimSpace(c.Google.SpreadsheetID) != "" {
		out = append(out, SheetsBackend)
	}
	if len(out) == 0 {
		out = append(out, MemoryBackend)
	}
	if c.SQLiteDBPath != "" {
		out = append(out, SQLiteBackend)
	}
	return out
}
