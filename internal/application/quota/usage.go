// internal/application/quota/usage.go
package quota

import (
	"math"

	"github.com/dustin/go-humanize"

	"booknest/internal/infra/localstore"
)

type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Thresholds, in percent of capacity.
const (
	WarningPercent  = 80.0
	CriticalPercent = 95.0
)

const DefaultCapacityBytes int64 = 5 * 1024 * 1024

// Usage sums keys and values in UTF-16 code units.
func Usage(entries map[string]string) int64 {
	var n int64
	for k, v := range entries {
		n += int64(localstore.Length(k) + localstore.Length(v))
	}
	return n
}

// Percentage returns used as a percent of capacity (DefaultCapacityBytes when capacity <= 0).
func Percentage(used, capacity int64) float64 {
	if capacity <= 0 {
		capacity = DefaultCapacityBytes
	}
	return float64(used) / float64(capacity) * 100
}

// Classify: ok below 80%, warning from 80% up to 95%, critical from 95%.
func Classify(used, capacity int64) Level {
	return levelOf(Percentage(used, capacity))
}

func levelOf(pct float64) Level {
	// 80% of an odd capacity is not exactly representable; compare at 1e-9 precision.
	p := math.Round(pct*1e9) / 1e9
	switch {
	case p >= CriticalPercent:
		return LevelCritical
	case p >= WarningPercent:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Status is one usage check.
type Status struct {
	Bytes      int64   `json:"size"`
	Capacity   int64   `json:"capacity"`
	Percentage float64 `json:"percentage"`
	Formatted  string  `json:"formatted"`
	Level      Level   `json:"status"`
}

func statusOf(used, capacity int64) Status {
	if capacity <= 0 {
		capacity = DefaultCapacityBytes
	}
	pct := Percentage(used, capacity)
	return Status{
		Bytes:      used,
		Capacity:   capacity,
		Percentage: pct,
		Formatted:  humanize.IBytes(uint64(used)),
		Level:      levelOf(pct),
	}
}
