// Package progress shows a terminal spinner while pages are crawled.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner reports crawl progress as "page x/y"
type Spinner struct {
	s     *spinner.Spinner
	total int
}

// New creates a Spinner writing to w, stderr when w is nil
func New(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stderr
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = " "
	return &Spinner{s: s}
}

// Start begins spinning for a crawl of total pages
func (p *Spinner) Start(total int) {
	p.total = total
	p.s.Suffix = p.suffix(0, "")
	p.s.Start()
}

// Update shows the page being worked on
func (p *Spinner) Update(page int, note string) {
	p.s.Lock()
	p.s.Suffix = p.suffix(page, note)
	p.s.Unlock()
}

// Stop halts the spinner and prints final on its own line
func (p *Spinner) Stop(final string) {
	p.s.FinalMSG = final + "\n"
	p.s.Stop()
}

func (p *Spinner) suffix(page int, note string) string {
	text := fmt.Sprintf(" page %d/%d", page, p.total)
	if note != "" {
		text += " " + note
	}
	return text
}

// Nop discards progress, for non-interactive runs
type Nop struct{}

func (Nop) Start(int)          {}
func (Nop) Update(int, string) {}
func (Nop) Stop(string)        {}
