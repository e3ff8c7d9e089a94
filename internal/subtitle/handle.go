package subtitle

import (
	"context"
	"fmt"

	"undertone/internal/ipc"
)

// Handle serves the control commands the hosting UI issues. Enable/disable
// and language selection are the only mutation entry points besides the
// visibility reports.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.statusResponse("status")
	case "text":
		return ipc.Response{OK: true, Text: c.Text()}
	case "enable":
		c.SetEnabled(true)
		return c.statusResponse("subtitles enabled")
	case "disable":
		c.SetEnabled(false)
		return c.statusResponse("subtitles disabled")
	case "language":
		if err := c.SetLanguage(req.Value); err != nil {
			return ipc.Response{OK: false, State: string(c.Snapshot().State), Error: err.Error()}
		}
		return c.statusResponse("language set to " + req.Value)
	case "show":
		c.SetVisible(true)
		return c.statusResponse("visible")
	case "hide":
		c.SetVisible(false)
		return c.statusResponse("hidden")
	default:
		return ipc.Response{
			OK:    false,
			State: string(c.Snapshot().State),
			Error: fmt.Sprintf("unknown command: %s", req.Command),
		}
	}
}

func (c *Controller) statusResponse(message string) ipc.Response {
	status := c.Snapshot()
	return ipc.Response{
		OK:       true,
		State:    string(status.State),
		Enabled:  status.Enabled,
		Visible:  status.Visible,
		Language: status.Language,
		Text:     status.Text,
		Message:  message,
	}
}

// Languages returns the selectable language codes in configured order.
func (c *Controller) Languages() []string {
	out := make([]string, len(c.languages))
	copy(out, c.languages)
	return out
}
