package timeutil

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	Layout     = "2006-01-02 15:04:05"
)

// FormatLayoutString 格式化时间
// 返回 "2006-01-02 15:04:05" 格式的时间
func FormatLayoutString(t time.Time) string {
	return t.Local().Format(Layout)
}

// ShortDuration renders a duration for a narrow table cell: "3d4h", "2h5m",
// "1m30s" or "42s". Sub-second values collapse to "0s".
func ShortDuration(d time.Duration) string {
	neg := ""
	if d < 0 {
		neg = "-"
		d = -d
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%s%dd%dh", neg, days, hours)
	case hours > 0:
		return fmt.Sprintf("%s%dh%dm", neg, hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%s%dm%ds", neg, minutes, seconds)
	default:
		return fmt.Sprintf("%s%ds", neg, seconds)
	}
}
