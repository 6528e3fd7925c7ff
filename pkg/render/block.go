package render

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/fatih/color"
)

// minColWidth is the floor every column starts from; widths only grow from
// there, capped by whatever screen width is left.
const minColWidth = 6

var headerStyle = color.New(color.Bold)

// Row is one printable record of a block. Cells returns the ordered cell
// values; the record behind them stays attached so an operator's textual
// selection can be resolved back to it with FindRows.
type Row interface {
	Cells() []string
}

// Block is a named grid of homogeneous rows with adaptive column widths.
// It is rebuilt by Reset every refresh cycle and rendered top-to-bottom,
// left-to-right, truncated to the available terminal height and width.
type Block struct {
	headers []string
	widths  []int
	rows    []Row
	cells   [][]string
	rowType reflect.Type
}

func NewBlock(headers ...string) *Block {
	widths := make([]int, len(headers))
	for i := range widths {
		widths[i] = minColWidth
	}
	return &Block{
		headers: headers,
		widths:  widths,
	}
}

// Reset replaces the held rows. A block is homogeneous for one display class:
// mixing row types is a programming error and panics immediately.
func (b *Block) Reset(rows []Row) {
	b.rows = b.rows[:0]
	b.cells = b.cells[:0]
	b.rowType = nil

	for _, r := range rows {
		t := reflect.TypeOf(r)
		if b.rowType == nil {
			b.rowType = t
		} else if t != b.rowType {
			panic(fmt.Sprintf("block row type mismatch: %v vs %v", b.rowType, t))
		}
		b.rows = append(b.rows, r)
		b.cells = append(b.cells, r.Cells())
	}
}

// Height is the number of stored rows plus one line for the header and one
// blank separator after the block.
func (b *Block) Height() int {
	return len(b.cells) + 2
}

// PrintLines renders the header plus up to height-1 data rows, each line
// truncated to width.
func (b *Block) PrintLines(w io.Writer, height, width int) {
	if height <= 1 {
		return
	}

	b.printLine(w, b.headers, width, true)
	height--
	for _, cells := range b.cells {
		if height <= 0 {
			break
		}
		height--
		b.printLine(w, cells, width, false)
	}
}

// printLine walks the columns left to right: a column is emitted only while
// its header still fits in the remaining width, its width grows to the widest
// cell seen so far (plus two spaces of gap) and the cell is left-justified and
// hard-truncated to that width.
func (b *Block) printLine(w io.Writer, cells []string, width int, bold bool) {
	remaining := width
	for i, cell := range cells {
		if i >= len(b.headers) || remaining < len(b.headers[i]) {
			break
		}

		cw := len(cell) + 2
		if cw < b.widths[i] {
			cw = b.widths[i]
		}
		if cw > remaining {
			cw = remaining
		}
		b.widths[i] = cw

		if len(cell) > cw {
			cell = cell[:cw]
		} else {
			cell += strings.Repeat(" ", cw-len(cell))
		}
		if bold {
			cell = headerStyle.Sprint(cell)
		}
		fmt.Fprint(w, cell)
		remaining -= cw
	}
	fmt.Fprintln(w)
}

// FindRows returns the records whose rendered cells satisfy match. This is
// how "Server db01, Opid 42" typed by the operator turns back into the live
// record it came from.
func (b *Block) FindRows(match func(cells []string) bool) []Row {
	var out []Row
	for i, cells := range b.cells {
		if match(cells) {
			out = append(out, b.rows[i])
		}
	}
	return out
}

// Empty reports whether the block currently holds no rows.
func (b *Block) Empty() bool {
	return len(b.cells) == 0
}
