// Package logger collapses bursts of identical log lines, which a refresher
// or a busy page produces every few seconds ("cache hit", "Amazon.in blocked").
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const DefaultFlushDelay = 2 * time.Second

// Deduper holds back a repeated line and writes it once with a count after
// flushDelay passes without a new repeat.
type Deduper struct {
	mu         sync.Mutex
	out        *log.Logger
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
}

// New writes to out, or to the standard logger when out is nil.
func New(out *log.Logger, flushDelay time.Duration) *Deduper {
	if out == nil {
		out = log.Default()
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Deduper{out: out, flushDelay: flushDelay}
}

var std = New(nil, DefaultFlushDelay)

// Dedup logs through the package-level Deduper.
func Dedup(format string, args ...any) {
	std.Printf(format, args...)
}

func (d *Deduper) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg != d.lastMsg {
		d.flushLocked()
		d.lastMsg = msg
	}
	d.count++

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, d.Flush)
}

// Flush writes any pending line immediately.
func (d *Deduper) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

func (d *Deduper) flushLocked() {
	if d.count == 0 {
		return
	}
	if d.count == 1 {
		d.out.Print(d.lastMsg)
	} else {
		d.out.Printf("%s (%d)", d.lastMsg, d.count)
	}
	d.count = 0
	d.lastMsg = ""
}
