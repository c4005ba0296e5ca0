package gimbal

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

// Monitor reads the firmware's newline-terminated output from r and reports
// every command echo to onEcho. Other lines are logged at debug level.
// Returns when ctx is cancelled, r reaches EOF, or a read fails.
func Monitor(ctx context.Context, r io.Reader, logger *slog.Logger, onEcho func(protocol.Echo)) error {
	scan := bufio.NewScanner(r)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs in its own goroutine so cancellation is not
	// held up by a quiet port.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if echo, ok := protocol.ParseEcho(line); ok {
				if onEcho != nil {
					onEcho(echo)
				}
				continue
			}
			if line != "" && logger != nil {
				logger.Debug("firmware", "line", line)
			}
		}
	}
}
