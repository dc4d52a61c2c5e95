package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide base logger. Packages derive from it with
// Logger.Named("Subsystem") rather than constructing their own.
var Logger *zap.Logger

// InitLogger (re)builds Logger for the given mode and level. It is called
// twice during startup: once with hardcoded defaults before configuration
// is loaded (so early log lines aren't silently dropped), and once more
// after config.Load so the real DEV/LOG_LEVEL values take effect.
func InitLogger(dev bool, level string) {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	var core zapcore.Core
	if dev {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			lvl,
		)
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		rotator := &lumberjack.Logger{
			Filename:   "logs/fsb.log",
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		writer := zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(os.Stdout),
			zapcore.AddSync(rotator),
		)
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, lvl)
	}

	Logger = zap.New(core, zap.AddCaller())
}
