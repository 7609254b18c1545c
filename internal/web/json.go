package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sweeney/vacuum-controller/internal/history"
)

// HistoryJSON is the envelope for /history.json.
type HistoryJSON struct {
	Readings []ReadingJSON `json:"readings"`
}

// ReadingJSON is one logged reading.
type ReadingJSON struct {
	Timestamp string  `json:"timestamp"`
	Voltage   float64 `json:"voltage"`
	Percent   int     `json:"percent"`
	Level     string  `json:"level"`
	Enabled   bool    `json:"enabled"`
	Duty      int     `json:"duty"`
}

func formatHistory(readings []history.Reading) HistoryJSON {
	out := HistoryJSON{Readings: make([]ReadingJSON, 0, len(readings))}
	for _, r := range readings {
		out.Readings = append(out.Readings, ReadingJSON{
			Timestamp: r.Time.UTC().Format(time.RFC3339),
			Voltage:   r.Voltage,
			Percent:   r.Percent,
			Level:     r.Level.Label(),
			Enabled:   r.Enabled,
			Duty:      r.Duty,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
