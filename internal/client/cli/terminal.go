package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/carelinkhq/carelink/internal/client/nav"
	"github.com/carelinkhq/carelink/internal/client/routes"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// TerminalSink renders navigation intents as prompt output and remembers the
// current "location", which the session controller consults to decide whether
// the user sits on the auth page.
type TerminalSink struct {
	mu      sync.Mutex
	current string
}

func NewTerminalSink() *TerminalSink {
	return &TerminalSink{current: routes.Home}
}

func (s *TerminalSink) Navigate(_ context.Context, intent nav.Intent) {
	s.mu.Lock()
	s.current = intent.Path
	s.mu.Unlock()
	printlnFn("-- navigated to", intent.Path)
}

// Current returns the path of the last navigation.
func (s *TerminalSink) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TerminalNotifier prints toast messages to the terminal.
type TerminalNotifier struct{}

func (TerminalNotifier) Success(_ context.Context, msg string) { printlnFn("[ok]", msg) }
func (TerminalNotifier) Info(_ context.Context, msg string)    { printlnFn("[info]", msg) }
func (TerminalNotifier) Error(_ context.Context, msg string)   { printlnFn("[error]", msg) }
