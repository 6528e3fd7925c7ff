package term

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/SisyphusSQ/mongo-top-tool/pkg/render"
)

const (
	defaultHeight = 20
	defaultWidth  = 80

	// keypress poll granularity during the idle wait
	pollSlice = 100 * time.Millisecond
)

// Console owns the terminal for the lifetime of the dashboard: raw mode for
// instant single-key reaction during the refresh loop, a scoped return to
// cooked mode while a prompt collects text answers, cached dimensions kept
// fresh by SIGWINCH. One goroutine reads stdin byte by byte into a channel;
// it is the only stdin reader in the process, in either mode.
type Console struct {
	in  *os.File
	out *os.File
	fd  int
	raw *term.State // nil when stdin is not a terminal

	keys  chan byte
	sigCh chan os.Signal
	done  chan struct{}

	mu     sync.Mutex
	height int
	width  int
}

func Open() (*Console, error) {
	c := &Console{
		in:    os.Stdin,
		out:   os.Stdout,
		keys:  make(chan byte, 8),
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
	c.fd = int(c.in.Fd())

	if term.IsTerminal(c.fd) {
		st, err := term.MakeRaw(c.fd)
		if err != nil {
			return nil, fmt.Errorf("enter raw mode: %v", err)
		}
		c.raw = st
	}

	c.saveSize()
	signal.Notify(c.sigCh, syscall.SIGWINCH)
	go c.watchResize()
	go c.readKeys()

	return c, nil
}

// Close restores the terminal unconditionally. Safe after any exit path.
func (c *Console) Close() {
	signal.Stop(c.sigCh)
	close(c.done)
	if c.raw != nil {
		_ = term.Restore(c.fd, c.raw)
	}
}

func (c *Console) watchResize() {
	for {
		select {
		case <-c.sigCh:
			c.saveSize()
		case <-c.done:
			return
		}
	}
}

// saveSize refreshes the cached dimensions, falling back to 20x80 when the
// terminal cannot be queried.
func (c *Console) saveSize() {
	w, h, err := term.GetSize(int(c.out.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		h, w = defaultHeight, defaultWidth
	}
	c.mu.Lock()
	c.height, c.width = h, w
	c.mu.Unlock()
}

func (c *Console) Size() (height, width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, c.width
}

func (c *Console) readKeys() {
	buf := make([]byte, 1)
	for {
		n, err := c.in.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		select {
		case c.keys <- buf[0]:
		case <-c.done:
			return
		}
	}
}

// WaitKey waits up to d for a single keypress, polling in short slices so the
// loop stays responsive. Returns false when the wait timed out.
func (c *Console) WaitKey(d time.Duration) (byte, bool) {
	deadline := time.Now().Add(d)
	for {
		slice := pollSlice
		rem := time.Until(deadline)
		if rem <= 0 {
			return 0, false
		}
		if rem < slice {
			slice = rem
		}

		select {
		case k := <-c.keys:
			return k, true
		case <-c.done:
			return 0, false
		case <-time.After(slice):
		}
	}
}

// ReadKey blocks until one key is pressed.
func (c *Console) ReadKey() (byte, error) {
	select {
	case k := <-c.keys:
		return k, nil
	case <-c.done:
		return 0, io.EOF
	}
}

// Prompt temporarily restores cooked, echoing mode and asks for the given
// fields in order. An empty answer aborts the prompt; whatever was collected
// so far is returned. Raw mode comes back on every exit path.
func (c *Console) Prompt(fields ...string) ([]string, error) {
	restore, err := c.cooked()
	if err != nil {
		return nil, err
	}
	defer restore()

	fmt.Fprintln(c.out)
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		fmt.Fprintf(c.out, "%s: ", f)
		line, err := c.readLine()
		if err != nil {
			return values, err
		}
		if line == "" {
			break
		}
		values = append(values, line)
	}
	return values, nil
}

func (c *Console) cooked() (func(), error) {
	if c.raw == nil {
		return func() {}, nil
	}
	if err := term.Restore(c.fd, c.raw); err != nil {
		return nil, err
	}
	return func() {
		if st, err := term.MakeRaw(c.fd); err == nil {
			c.raw = st
		}
	}, nil
}

func (c *Console) readLine() (string, error) {
	var sb strings.Builder
	for {
		select {
		case b := <-c.keys:
			switch b {
			case '\n':
				return strings.TrimSpace(sb.String()), nil
			case '\r':
				// cooked mode may deliver CRLF
			default:
				sb.WriteByte(b)
			}
		case <-c.done:
			return "", io.EOF
		}
	}
}

// Refresh clears the screen and stacks the blocks top to bottom, separated by
// blank lines, until the remaining height cannot fit a header plus one row.
func (c *Console) Refresh(blocks []*render.Block) {
	height, width := c.Size()

	var buf bytes.Buffer
	left := height
	for _, b := range blocks {
		if left <= 2 {
			break
		}
		bh := b.Height()
		if bh > left {
			bh = left
		}
		b.PrintLines(&buf, bh, width)
		left -= bh
		if left >= 2 {
			buf.WriteByte('\n')
			left--
		}
	}

	fmt.Fprint(c.out, "\x1b[2J\x1b[H")
	c.write(buf.String())
}

// Print writes formatted text to the screen, keeping line starts correct
// while the terminal is raw.
func (c *Console) Print(format string, args ...interface{}) {
	c.write(fmt.Sprintf(format, args...))
}

func (c *Console) write(s string) {
	if c.raw != nil {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	fmt.Fprint(c.out, s)
}
