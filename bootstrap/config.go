package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"iochunt/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// parseLevel maps a config level name to a zap level, defaulting to info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger initializes the zap logger with colored console output.
// A nil cfg logs at debug level, which is what the pre-config phase uses.
func InitLogger(cfg *config.Config) (*zap.Logger, *zap.SugaredLogger, error) {
	level := zapcore.DebugLevel
	development := true
	if cfg != nil {
		level = parseLevel(cfg.Logging.Level)
		development = cfg.Logging.Development
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if development {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(core, opts...)
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration.
func InitConfig(path string, sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	}

	sugar.Infow("Data paths configuration",
		"data_dir", cfg.GetDataDir(),
		"sqlite_path", cfg.GetSQLitePath())

	redacted := cfg.Redacted()
	sugar.Infow("Config loaded",
		"api_port", redacted.API.Port,
		"log_backend", redacted.Sources.Log.Backend,
		"redis_enabled", redacted.Redis.Enabled,
		"nats_enabled", redacted.NATS.Enabled,
		"tracing_enabled", redacted.Tracing.Enabled,
		"secrets_provider", redacted.Secrets.Provider)

	return cfg, nil
}

// DataDirectoriesFromConfig creates DataDirectories from configuration.
func DataDirectoriesFromConfig(cfg *config.Config) DataDirectories {
	return DataDirectories{
		Base:   cfg.GetDataDir(),
		SQLite: cfg.GetSQLitePath(),
	}
}
