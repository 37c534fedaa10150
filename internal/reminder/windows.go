package reminder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window is one configured lead time before a session. Label is the raw
// token ("24h", "90m") and doubles as the persisted marker key.
type Window struct {
	Label  string
	Offset time.Duration
}

var windowPattern = regexp.MustCompile(`^(\d+)([mh])$`)

// ParseWindows parses a comma-separated window spec such as "24h,1h".
// Unparseable tokens are dropped silently so a typo disables one window
// rather than the whole sweep.
func ParseWindows(spec string) []Window {
	var windows []Window
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		m := windowPattern.FindStringSubmatch(strings.ToLower(token))
		if m == nil {
			continue
		}
		value, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		unit := time.Minute
		if m[2] == "h" {
			unit = time.Hour
		}
		windows = append(windows, Window{Label: token, Offset: time.Duration(value) * unit})
	}
	return windows
}
