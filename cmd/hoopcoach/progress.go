package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/session"
)

// progressPrinter renders controller snapshots. On a terminal it keeps one
// live line updated in place; otherwise it prints a line per change.
type progressPrinter struct {
	out   io.Writer
	live  bool
	color bool

	mu        sync.Mutex
	lastState session.State
	lastPct   string
	open      bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	tty := cli.IsTerminal(out)
	return &progressPrinter{out: out, live: tty, color: tty}
}

func (p *progressPrinter) observe(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stateChanged := s.State != p.lastState
	p.lastState = s.State

	switch s.State {
	case session.Idle:
		p.endLine()
		return
	case session.Submitting:
		if stateChanged {
			fmt.Fprintf(p.out, "Uploading %s (%s)\n", s.FileName, filehandler.FormatFileSize(s.FileBytes))
		}
	case session.Processing:
		if stateChanged {
			p.endLine()
			fmt.Fprintf(p.out, "Session %s accepted\n", s.SessionID)
			log.Info().Str("sessionId", s.SessionID).Msg("Processing started")
		}
	case session.Completed, session.Failed:
		if !stateChanged {
			return
		}
	}

	pct := cli.FormatProgress(s.Progress)
	if !stateChanged && pct == p.lastPct {
		return
	}
	p.lastPct = pct

	line := cli.ProgressLine(s.Phase(), p.color)
	if p.live {
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
		p.open = true
		if s.State.IsTerminal() {
			p.endLine()
		}
		return
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressPrinter) endLine() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}
