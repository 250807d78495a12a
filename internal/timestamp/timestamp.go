// Package timestamp answers the staleness questions the function cache asks:
// what time it is, when the last prompt was printed, when the working
// directory last changed, and when a file was last modified.
package timestamp

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Mode controls which function files get their time stamps checked. The
// zero Mode is IgnoreSystem.
type Mode int

const (
	// IgnoreSystem skips files under the installation tree.
	IgnoreSystem Mode = iota
	// IgnoreNone rechecks every function file.
	IgnoreNone
	// IgnoreAll never rechecks a file once loaded.
	IgnoreAll
)

var ErrInvalidMode = errors.New(`argument must be one of "all", "system", or "none"`)

// ParseMode accepts the user-facing spellings "all", "system" and "none".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "all":
		return IgnoreAll, nil
	case "system":
		return IgnoreSystem, nil
	case "none":
		return IgnoreNone, nil
	}
	return IgnoreSystem, fmt.Errorf("ignore_function_time_stamp: %w", ErrInvalidMode)
}

func (m Mode) String() string {
	switch m {
	case IgnoreNone:
		return "none"
	case IgnoreAll:
		return "all"
	default:
		return "system"
	}
}

// Oracle tracks the prompt and chdir epochs against a clock.
type Oracle struct {
	now        func() time.Time
	lastPrompt time.Time
	lastChdir  time.Time
}

// New returns an oracle on the wall clock.
func New() *Oracle {
	return NewWithClock(time.Now)
}

// NewWithClock returns an oracle reading time from now.
func NewWithClock(now func() time.Time) *Oracle {
	return &Oracle{now: now}
}

func (o *Oracle) Now() time.Time            { return o.now() }
func (o *Oracle) LastPromptTime() time.Time { return o.lastPrompt }
func (o *Oracle) LastChdirTime() time.Time  { return o.lastChdir }

// MarkPrompt records that the interpreter has just printed a prompt.
func (o *Oracle) MarkPrompt() { o.lastPrompt = o.now() }

// MarkChdir records that the working directory has just changed.
func (o *Oracle) MarkChdir() { o.lastChdir = o.now() }

// FileModTime returns the modification time of path, or false if the
// file cannot be stat'ed.
func (o *Oracle) FileModTime(path string) (time.Time, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// SameFile compares by filesystem identity, not by name.
func (o *Oracle) SameFile(a, b string) bool {
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	t time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start}
}

func (c *ManualClock) Now() time.Time { return c.t }

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.t = c.t.Add(d)
	return c.t
}

func (c *ManualClock) Set(t time.Time) { c.t = t }
