package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/edgarogh/twiiiiter/internal/logger"
)

// ParseStringTime parses config durations like "10s", "5m", "48h" or "2d".
func ParseStringTime(timeString string) time.Duration {
	timeString = strings.ToLower(timeString)
	units := []struct {
		suffix string
		unit   time.Duration
	}{
		{"s", time.Second},
		{"m", time.Minute},
		{"h", time.Hour},
		{"d", 24 * time.Hour},
	}
	for _, u := range units {
		if cutString, _, found := strings.Cut(timeString, u.suffix); found {
			number, err := strconv.Atoi(cutString)
			if err != nil {
				logger.ErrorF("Error parsing time string: %s", err.Error())
				return 0
			}
			return time.Duration(number) * u.unit
		}
	}
	logger.ErrorF("invalid time format: %s", timeString)
	return 0
}
