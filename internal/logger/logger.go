package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the severity of log messages
type LogLevel int

// Predefined log levels in increasing order of severity
const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// Field is a single structured key=value attached to a log line. Every
// reconciliation cycle logs its cycle number, classification outcome,
// chosen action, current primary and error kind (when present) as
// Fields rather than folding them into the free-text message, per §6's
// "Observable logs" contract.
type Field struct {
	Key   string
	Value any
}

// F is a terse constructor for Field, meant to be used inline at call
// sites: logger.Info("cycle complete", logger.F("cycle", n)).
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger provides a thread-safe logging mechanism with file and console output
type Logger struct {
	mu           sync.Mutex
	currentLevel LogLevel
	logFile      *os.File
}

// Predefined styles for different log levels
var (
	PrimaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true) // Blue for primary/info logs
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true) // Yellow for warnings
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true) // Red for errors
	FieldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))          // Dim gray for structured fields
)

// Singleton logger instance
var (
	defaultLogger *Logger
	initOnce      sync.Once
	globalMutex   sync.Mutex
)

// DefaultLogLevel sets the default logging level if not specified
var DefaultLogLevel = INFO

// Init creates a new Logger instance with the specified log level
//
// It performs the following actions:
// 1. Creates a 'logs' directory if it doesn't exist
// 2. Generates a log file with a timestamp in the filename
// 3. Configures the logger with the specified log level
func Init(level LogLevel) (*Logger, error) {
	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %v", err)
	}

	filename := filepath.Join(logsDir, fmt.Sprintf("mongorsop_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	logFile, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %v", err)
	}

	return &Logger{
		currentLevel: level,
		logFile:      logFile,
	}, nil
}

// Close safely closes the log file
func (l *Logger) Close() error {
	return l.logFile.Close()
}

// SetLevel dynamically changes the current log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentLevel = level
}

// log is an internal method to handle logging across console and file
func (l *Logger) log(level LogLevel, style lipgloss.Style, message string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fieldsText := renderFields(fields)

	fileLogEntry := fmt.Sprintf("%s %s %s%s\n",
		timestamp,
		getLevelPrefix(level),
		message,
		fieldsText,
	)

	if l.logFile != nil {
		l.logFile.WriteString(fileLogEntry)
		l.logFile.Sync()
	}

	if level >= l.currentLevel {
		consoleLogEntry := fmt.Sprintf("%s %s %s%s\n",
			timestamp,
			PrimaryStyle.Render(getLevelPrefix(level)),
			style.Render(message),
			FieldStyle.Render(fieldsText),
		)
		fmt.Print(consoleLogEntry)
	}
}

// renderFields formats structured fields as " key=value key2=value2",
// sorted by key so log lines are diffable across cycles.
func renderFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	parts := make([]string, 0, len(sorted))
	for _, f := range sorted {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	return " " + strings.Join(parts, " ")
}

func getLevelPrefix(level LogLevel) string {
	switch level {
	case DEBUG:
		return "[DEBUG]"
	case INFO:
		return "[INFO]"
	case WARNING:
		return "[WARNING]"
	case ERROR:
		return "[ERROR]"
	default:
		return "[UNKNOWN]"
	}
}

func (l *Logger) LogDebug(message string, fields ...Field)   { l.log(DEBUG, PrimaryStyle, message, fields) }
func (l *Logger) LogInfo(message string, fields ...Field)    { l.log(INFO, PrimaryStyle, message, fields) }
func (l *Logger) LogWarning(message string, fields ...Field) { l.log(WARNING, WarningStyle, message, fields) }
func (l *Logger) LogError(message string, fields ...Field)   { l.log(ERROR, ErrorStyle, message, fields) }

// EnsureLogger initializes the global logger if not already initialized
func EnsureLogger(level ...LogLevel) error {
	var err error
	initOnce.Do(func() {
		logLevel := DefaultLogLevel
		if len(level) > 0 {
			logLevel = level[0]
		}
		defaultLogger, err = Init(logLevel)
	})
	return err
}

// GetLogger returns the global logger instance
func GetLogger() (*Logger, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if defaultLogger == nil {
		if err := EnsureLogger(); err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %v", err)
		}
	}
	return defaultLogger, nil
}

// Global logging convenience functions, each accepting optional
// structured Fields so callers can attach cycle number, classification,
// action, primary, and error kind without string-formatting them into
// the message.

func Debug(message string, fields ...Field) {
	l, err := GetLogger()
	if err != nil {
		fmt.Printf("Failed to get logger: %v\n", err)
		return
	}
	l.LogDebug(message, fields...)
}

func Info(message string, fields ...Field) {
	l, err := GetLogger()
	if err != nil {
		fmt.Printf("Failed to get logger: %v\n", err)
		return
	}
	l.LogInfo(message, fields...)
}

func Warning(message string, fields ...Field) {
	l, err := GetLogger()
	if err != nil {
		fmt.Printf("Failed to get logger: %v\n", err)
		return
	}
	l.LogWarning(message, fields...)
}

func Error(message string, fields ...Field) {
	l, err := GetLogger()
	if err != nil {
		fmt.Printf("Failed to get logger: %v\n", err)
		return
	}
	l.LogError(message, fields...)
}

// Close releases resources associated with the global logger
func Close() error {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if defaultLogger != nil {
		return defaultLogger.Close()
	}
	return nil
}

// SetLevel changes the log level of the global logger
func SetLevel(level LogLevel) error {
	l, err := GetLogger()
	if err != nil {
		return err
	}
	l.SetLevel(level)
	return nil
}
