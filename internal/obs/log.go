package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const serviceName = "pressdesk"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceName
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// eventLine builds the envelope for lifecycle events. Caller fields
// overlay the defaults.
func eventLine(msg string, fields map[string]any) map[string]any {
	entry := map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     msg,
		"service": serviceName,
	}
	for k, v := range fields {
		entry[k] = v
	}
	return entry
}

// LogEvent emits one structured line for service lifecycle events
// (startup, store selection, shutdown).
func LogEvent(msg string, fields map[string]any) {
	LogRequest(eventLine(msg, fields))
}
