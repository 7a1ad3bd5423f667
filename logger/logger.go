package logger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

const (
	EventServiceStartup    = "SERVICE_STARTUP"
	EventServiceShutdown   = "SERVICE_SHUTDOWN"
	EventDBConnection      = "DB_CONNECTION"
	EventDBError           = "DB_ERROR"
	EventValidationFailure = "VALIDATION_FAILURE"
	EventImport            = "IMPORT"
	EventBlobUpload        = "BLOB_UPLOAD"
	EventBlobDelete        = "BLOB_DELETE"
	EventBlobError         = "BLOB_ERROR"
	EventPlayback          = "PLAYBACK"
	EventCatalogChange     = "CATALOG_CHANGE"
	EventGeneral           = "GENERAL"
)

// LogEntry is one JSON line. RequestID and BatchID tie together the entries
// written while serving one request or importing one batch.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Service   string                 `json:"service"`
	EventType string                 `json:"event_type"`
	RequestID string                 `json:"request_id,omitempty"`
	BatchID   string                 `json:"batch_id,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Hmac      string                 `json:"hmac"`
}

type Config struct {
	ServiceName string
	Environment string
	LogFilePath string
	HMACKey     string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

type Logger struct {
	config  Config
	writer  io.Writer
	hmacKey []byte
	mu      sync.Mutex
}

var sensitiveFields = map[string]bool{
	"password":      true,
	"token":         true,
	"secret":        true,
	"api_key":       true,
	"authorization": true,
	"cookie":        true,
	"hmac_key":      true,
	"signature":     true,
}

// Remote media URLs may carry credentials, either as userinfo or as the
// query parameters of a signed link.
var (
	urlUserinfo   = regexp.MustCompile(`(?i)\b(https?|hdfs)://[^/\s@]+@`)
	signedURLPart = regexp.MustCompile(`(?i)([?&](?:token|access_token|sig|signature|key|x-amz-signature|x-amz-credential|x-amz-security-token)=)[^&\s"]+`)
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	batchIDKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func BatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey).(string)
	return id
}

var instance *Logger

func Init(cfg Config) {
	instance = NewLogger(cfg)
}

func GetLogger() *Logger {
	if instance == nil {
		instance = &Logger{
			config:  Config{ServiceName: "catalog-service", Environment: "development"},
			writer:  os.Stdout,
			hmacKey: []byte("default-key"),
		}
	}
	return instance
}

func NewLogger(cfg Config) *Logger {
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 30
	}
	if cfg.LogFilePath == "" {
		cfg.LogFilePath = fmt.Sprintf("/var/log/%s/app.log", cfg.ServiceName)
	}
	if cfg.HMACKey == "" {
		cfg.HMACKey = "default-hmac-key-change-in-production"
	}

	writers := []io.Writer{os.Stdout}

	logDir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Cannot create log directory %s: %v, using stdout only\n", logDir, err)
	} else {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	return &Logger{
		config:  cfg,
		writer:  io.MultiWriter(writers...),
		hmacKey: []byte(cfg.HMACKey),
	}
}

func (l *Logger) log(ctx context.Context, level LogLevel, eventType, message string, details map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.config.ServiceName,
		EventType: eventType,
		RequestID: RequestID(ctx),
		BatchID:   BatchID(ctx),
		Message:   l.sanitizeString(message),
		Details:   l.sanitizeDetails(details),
	}
	entry.Hmac = l.computeHMAC(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to marshal log entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(append(data, '\n'))
}

func (l *Logger) Info(eventType, message string, details map[string]interface{}) {
	l.log(context.Background(), LevelInfo, eventType, message, details)
}

func (l *Logger) Warn(eventType, message string, details map[string]interface{}) {
	l.log(context.Background(), LevelWarn, eventType, message, details)
}

func (l *Logger) Error(eventType, message string, details map[string]interface{}) {
	l.log(context.Background(), LevelError, eventType, message, details)
}

func (l *Logger) Fatal(eventType, message string, details map[string]interface{}) {
	l.log(context.Background(), LevelError, eventType, message, details)
	os.Exit(1)
}

func (l *Logger) InfoCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	l.log(ctx, LevelInfo, eventType, message, details)
}

func (l *Logger) WarnCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	l.log(ctx, LevelWarn, eventType, message, details)
}

func (l *Logger) ErrorCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	l.log(ctx, LevelError, eventType, message, details)
}

func Info(eventType, message string, details map[string]interface{}) {
	GetLogger().Info(eventType, message, details)
}
func Warn(eventType, message string, details map[string]interface{}) {
	GetLogger().Warn(eventType, message, details)
}
func Error(eventType, message string, details map[string]interface{}) {
	GetLogger().Error(eventType, message, details)
}
func Fatal(eventType, message string, details map[string]interface{}) {
	GetLogger().Fatal(eventType, message, details)
}

func InfoCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	GetLogger().InfoCtx(ctx, eventType, message, details)
}
func WarnCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	GetLogger().WarnCtx(ctx, eventType, message, details)
}
func ErrorCtx(ctx context.Context, eventType, message string, details map[string]interface{}) {
	GetLogger().ErrorCtx(ctx, eventType, message, details)
}

func Fields(kv ...interface{}) map[string]interface{} {
	details := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		details[key] = kv[i+1]
	}
	return details
}

// Verify reports whether entry carries the HMAC this logger would compute for it.
func (l *Logger) Verify(entry LogEntry) bool {
	return hmac.Equal([]byte(entry.Hmac), []byte(l.computeHMAC(entry)))
}

func (l *Logger) computeHMAC(entry LogEntry) string {
	data := strings.Join([]string{
		entry.Timestamp,
		string(entry.Level),
		entry.Service,
		entry.EventType,
		entry.RequestID,
		entry.BatchID,
		entry.Message,
	}, "|")
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Logger) sanitizeDetails(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(details))
	for k, v := range details {
		sanitized[k] = l.sanitizeValue(k, v)
	}
	return sanitized
}

func (l *Logger) sanitizeValue(key string, value interface{}) interface{} {
	if sensitiveFields[strings.ToLower(key)] {
		return "[REDACTED]"
	}
	switch v := value.(type) {
	case string:
		return l.sanitizeString(v)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = l.sanitizeString(s)
		}
		return out
	case map[string]interface{}:
		return l.sanitizeDetails(v)
	default:
		return v
	}
}

func (l *Logger) sanitizeString(s string) string {
	s = redactURLCredentials(s)
	if l.config.Environment == "production" {
		s = stripPanicDump(s)
	}
	return s
}

func redactURLCredentials(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	s = urlUserinfo.ReplaceAllString(s, "${1}://[REDACTED]@")
	return signedURLPart.ReplaceAllString(s, "${1}[REDACTED]")
}

// stripPanicDump drops a goroutine dump appended to an error message.
func stripPanicDump(s string) string {
	if i := strings.Index(s, "\ngoroutine "); i >= 0 {
		return strings.TrimRight(s[:i], "\n")
	}
	return s
}
