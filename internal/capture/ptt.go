package capture

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Push-to-talk source labels.
const (
	SourceTerminal = "terminal"
	SourceHTTP     = "http"
)

// RunTerminal drives sw from line-oriented input such as a terminal. An empty
// line toggles the gate, "on" and "off" set it, and "q" or end of input calls
// quit. It returns when input ends or ctx is done after the next line.
func RunTerminal(ctx context.Context, r io.Reader, sw *Switch, quit func(), logger *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch cmd := strings.ToLower(strings.TrimSpace(sc.Text())); cmd {
		case "":
			on := sw.Toggle(SourceTerminal)
			logger.Info("push-to-talk", zap.Bool("talking", on))
		case "on", "off":
			if sw.Set(cmd == "on", SourceTerminal) {
				logger.Info("push-to-talk", zap.Bool("talking", cmd == "on"))
			}
		case "q", "quit", "exit":
			quit()
			return
		default:
			logger.Warn("unknown push-to-talk command", zap.String("input", cmd))
		}
	}
	if err := sc.Err(); err != nil {
		logger.Warn("push-to-talk input failed", zap.Error(err))
	}
	quit()
}
