package utils

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// https://stackoverflow.com/a/70802740/15807350
func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

// TimeFormat renders a duration given in whole seconds the way the status
// page and startup banner want it: "2d 3h 4m 5s", shortening to the largest
// present unit down to seconds.
func TimeFormat(totalSeconds uint64) string {
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// HumanBytes renders a byte count in SI units, the way the status endpoint
// formats the descriptor cache's capacity.
func HumanBytes(n uint64) string {
	return humanize.Bytes(n)
}
