package host

import (
	"fmt"
	"strings"
	"time"

	"github.com/man10/strike/internal/dispatcher"
	"github.com/man10/strike/pkg/core"
)

// Bridge is the entry point a host runtime calls commands through.
// Replies are ["ok", command, result] or ["error", command, message].
type Bridge struct {
	dispatcher *dispatcher.Dispatcher
	describe   func(error) string
}

// NewBridge routes calls to d. describe turns handler errors into player
// text; nil uses err.Error().
func NewBridge(d *dispatcher.Dispatcher, describe func(error) string) *Bridge {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	return &Bridge{dispatcher: d, describe: describe}
}

// Call dispatches command for sender. A zero sender is the console.
func (b *Bridge) Call(sender core.PlayerID, command string, args ...string) string {
	command = strings.ToLower(strings.TrimSpace(command))
	if b.dispatcher == nil || !b.dispatcher.HasHandler(command) || b.dispatcher.IsInternal(command) {
		return FormatResponse(command, nil, fmt.Errorf("unknown command %s", command), nil)
	}

	result, err := b.dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Sender:    sender,
		Args:      args,
		Timestamp: time.Now(),
	})
	return FormatResponse(command, result, err, b.describe)
}

// FormatResponse renders a dispatch result for the host.
func FormatResponse(command string, result any, err error, describe func(error) string) string {
	if err != nil {
		msg := err.Error()
		if describe != nil {
			msg = describe(err)
		}
		return fmt.Sprintf(`["error", %q, %q]`, command, msg)
	}
	if result == nil || result == "" {
		return fmt.Sprintf(`["ok", %q]`, command)
	}
	return fmt.Sprintf(`["ok", %q, %q]`, command, fmt.Sprint(result))
}
