package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Bounds of the /mix item count.
const (
	defaultMixCount = 5
	maxMixCount     = 20
)

// ParseIDArg extracts the first id from a command argument string.
func ParseIDArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("id is required")
	}
	return parts[0], nil
}

// ParseMixArgs extracts a mixer id and an optional item count.
// Format: <mixer_id> [n]
func ParseMixArgs(args string) (string, int, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return "", 0, fmt.Errorf("usage: /mix <id> [n]")
	}
	if len(parts) == 1 {
		return parts[0], defaultMixCount, nil
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 || n > maxMixCount {
		return "", 0, fmt.Errorf("item count must be between 1 and %d", maxMixCount)
	}
	return parts[0], n, nil
}
