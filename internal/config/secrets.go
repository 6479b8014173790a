package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// LoadDashboardSecrets reads the warehouse credentials used by the dashboard from a
// TOML secrets file with a [snowflake] table:
//
//	[snowflake]
//	user = "..."
//	password = "..."
//	account = "..."
//	warehouse = "COMPUTE_WH"
//	database = "BANKING_DB"
//	schema = "GOLD"
//
// When the file does not exist the fallback is returned unchanged and found is false.
func LoadDashboardSecrets(path string, fallback WarehouseConfig) (cfg WarehouseConfig, found bool, err error) {
	if path == "" {
		return fallback, false, nil
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		return fallback, false, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fallback, false, fmt.Errorf("read secrets file %s: %w", path, err)
	}

	section := v.Sub("snowflake")
	if section == nil {
		return fallback, false, fmt.Errorf("%w: secrets file %s has no [snowflake] table", ErrInvalidConfig, path)
	}

	cfg = WarehouseConfig{
		Account:   section.GetString("account"),
		User:      section.GetString("user"),
		Password:  section.GetString("password"),
		Warehouse: section.GetString("warehouse"),
		Database:  section.GetString("database"),
		Schema:    section.GetString("schema"),
		Role:      section.GetString("role"),
		Stage:     fallback.Stage,
	}
	return cfg, true, nil
}
