package arsenal

import (
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured logger type used throughout the runtime (scheduler
// panic reporting, event-loop poller errors, lifecycle messages). It is a
// thin alias over logiface's generic Logger, instantiated with the izerolog
// event adapter — the same wiring pattern as
// joeycumines-go-utilpkg/logiface-zerolog's WithZerolog, see DESIGN.md.
type Logger = *logiface.Logger[*izerolog.Event]

var defaultLogger = newDefaultLogger()

func newDefaultLogger() Logger {
	z := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(z),
		izerolog.L.WithLevel(logiface.LevelInformational),
	)
}

// SetLogger replaces the package-level logger. Each Scheduler captures the
// logger current at NewScheduler and uses it for panic reports and poller
// errors, so SetLogger only affects schedulers created after it is called,
// e.g. to lower the level or redirect output in tests.
func SetLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func currentLogger() Logger { return defaultLogger }
