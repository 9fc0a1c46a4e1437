// Package testlog provides a log handler for unit tests.
package testlog

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing is the subset of testing.TB used by the handler.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
}

type handler struct {
	t   Testing
	mu  sync.Mutex
	fmt log.Format
}

func (h *handler) Log(r *log.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.t.Helper()
	h.t.Logf("%s", strings.TrimRight(string(h.fmt.Format(r)), "\n"))
	return nil
}

// Logger returns a logger that writes every record at or above level through t.Logf,
// so output is attributed to the test that produced it.
func Logger(t Testing, level log.Lvl) log.Logger {
	l := log.New()
	l.SetHandler(log.LvlFilterHandler(level, &handler{t: t, fmt: log.TerminalFormat(false)}))
	return l
}
