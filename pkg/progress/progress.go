package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const defaultBarWidth = 30

// Bar 终端进度条组件，使用 \r 覆盖同一行实现实时刷新，Finish() 后输出换行。
// The batch-kill action walks a list of operations one killOp at a time; the
// bar shows how far along it is.
type Bar struct {
	out     io.Writer
	total   int64
	current int64
	start   time.Time
	width   int
}

func NewBar(out io.Writer, total int64) *Bar {
	return &Bar{
		out:   out,
		total: total,
		start: time.Now(),
		width: defaultBarWidth,
	}
}

// Update redraws the bar at the given position. A current beyond total grows
// total instead of overflowing the bar.
func (p *Bar) Update(current int64) {
	p.current = current
	if current > p.total {
		p.total = current
	}

	percent := 100.0
	if p.total > 0 {
		percent = float64(current) / float64(p.total) * 100
	}

	filled := int(percent / 100 * float64(p.width))
	if filled > p.width {
		filled = p.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	fmt.Fprintf(p.out, "\r[%s]  %.0f%%  %d/%d", bar, percent, current, p.total)
}

// Finish completes the bar at 100% and moves to the next line.
func (p *Bar) Finish() {
	p.Update(p.total)
	fmt.Fprint(p.out, "\n")
}

// Elapsed returns the time since the bar was created.
func (p *Bar) Elapsed() time.Duration {
	return time.Since(p.start)
}
