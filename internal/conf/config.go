// config.go: settings struct and functions to load and persist the AutoLabel configuration.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/autolabelhq/autolabel-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for a rotated log file.
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file
	MaxSize  int64  // max log file size in bytes before rotation
	Rotation string // rotation policy, "daily", "weekly" or "size"
}

// Log rotation policies
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to SQLite database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects and configures the record database.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// StorageSettings configures persistence of uploaded image bytes.
type StorageSettings struct {
	UploadPath  string // directory for stored image files
	MaxFileSize int64  // maximum accepted upload size in bytes
}

// ClassifierSettings configures the zero-shot classification service.
type ClassifierSettings struct {
	Endpoint       string        // URL of the inference endpoint
	PromptTemplate string        // prompt template applied per candidate label
	Timeout        time.Duration // per-invocation timeout
	Concurrency    int           // maximum concurrent classification calls
}

// WebServerSettings configures the HTTP API server.
type WebServerSettings struct {
	Enabled bool
	Port    string
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of the service instance
		Log  LogConfig // main log settings
	}

	Output     OutputSettings
	Storage    StorageSettings
	Classifier ClassifierSettings
	WebServer  WebServerSettings

	Version   string `yaml:"-"` // build version, runtime value
	BuildDate string `yaml:"-"` // build date, runtime value
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// struct and stores it as the active settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first default
// config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the config file search paths in priority order:
// the working directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config directory: %w", err)
	}
	return []string{".", filepath.Join(configDir, "autolabel")}, nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting is a shorthand for GetSettings.
func Setting() *Settings {
	return GetSettings()
}

// ValidateSettings checks that the loaded configuration is usable.
func ValidateSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no database backend enabled, enable either SQLite or MySQL output").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("both SQLite and MySQL outputs enabled, select only one").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Storage.MaxFileSize <= 0 {
		return errors.Newf("storage.maxfilesize must be positive, got %d", settings.Storage.MaxFileSize).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Classifier.Concurrency < 1 {
		return errors.Newf("classifier.concurrency must be at least 1, got %d", settings.Classifier.Concurrency).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Classifier.Timeout <= 0 {
		return errors.Newf("classifier.timeout must be positive, got %s", settings.Classifier.Timeout).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
