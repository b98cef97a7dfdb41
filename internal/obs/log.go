// Package obs holds the observability primitives shared across the service:
// the JSON line logger, Prometheus metrics and build info.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide logger. Output is one JSON object per
// line; callers marshal their own fields.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one JSON log line built from entry. A marshal failure is
// reported in-band so the stream stays parseable.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"dropped unmarshalable log entry"}`)
		return
	}
	Logger().Println(string(data))
}
