package main

import (
	"context"
	"sync"

	"github.com/chzyer/readline"
)

// operationCanceler holds the cancel func of the command or script that is
// currently running, so Ctrl-C can stop it without leaving the console.
type operationCanceler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *operationCanceler) Set(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

func (c *operationCanceler) Clear() {
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
}

// Cancel stops the running operation and reports whether there was one.
func (c *operationCanceler) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// filterInterruptRune ignores Ctrl-G at the prompt.
func filterInterruptRune(r rune) (rune, bool) {
	if r == readline.CharBell {
		return 0, false
	}
	return r, true
}
