package methods

import (
	"strconv"
	"strings"
)

// ParseColor reads "#RRGGBB" or "RRGGBB" into 0..1 channels. Anything else is red.
func ParseColor(s string) (r, g, b float64) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 1, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 1, 0, 0
	}
	return float64(v>>16&0xFF) / 255, float64(v>>8&0xFF) / 255, float64(v&0xFF) / 255
}
