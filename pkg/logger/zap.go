package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Sugar *zap.SugaredLogger

// using the logger looks like this:

// logger.Sugar.Info("here is a log example");
// or
// logger.Sugar.Warnw("order post failed", "code", "HTTP_STATUS")

func Init(development bool) {
	var zapLevel zap.AtomicLevel
	if development {
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	config := zap.Config{
		Level:            zapLevel,
		Development:      development,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	Sugar = logger.Sugar()
}
