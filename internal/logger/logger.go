package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "lvl",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// 调用栈跳过本包一层，caller 指向业务代码
	sugar = newSugar(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	))
)

func newSugar(core zapcore.Core) *zap.SugaredLogger {
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// SetDebug 设置是否开启调试模式
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// SetCore 替换底层输出，返回恢复函数（主要用于测试）
func SetCore(core zapcore.Core) (restore func()) {
	old := sugar
	sugar = newSugar(core)
	return func() { sugar = old }
}

// Level 返回当前日志级别，可直接用于构造 zapcore.Core
func Level() zap.AtomicLevel { return level }

// Sync 刷新缓冲的日志
func Sync() error {
	return sugar.Sync()
}

// Info 打印信息日志
func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

// Infow 打印带结构化字段的信息日志
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

// Debug 打印调试日志
func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

// Warn 打印警告日志
func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// Error 打印错误日志
func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}

// Errorw 打印带结构化字段的错误日志
func Errorw(msg string, keysAndValues ...interface{}) {
	sugar.Errorw(msg, keysAndValues...)
}

// Fatal 打印错误日志并退出
func Fatal(format string, v ...interface{}) {
	sugar.Fatalf(format, v...)
}
