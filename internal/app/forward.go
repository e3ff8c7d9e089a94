package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"undertone/internal/ipc"
)

// ErrNoSession reports that no daemon owns the control socket.
var ErrNoSession = errors.New("no active undertone session")

const forwardTimeout = 220 * time.Millisecond

// Forward sends one control command to the running daemon. A missing or
// dead socket maps to ErrNoSession; a refused command carries the
// daemon's error text.
func Forward(ctx context.Context, command string, value string) (ipc.Response, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, err
	}

	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command, Value: value}, forwardTimeout)
	if err != nil {
		if ipc.IsSocketMissing(err) || ipc.IsConnectionRefused(err) {
			return ipc.Response{}, ErrNoSession
		}
		return ipc.Response{}, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
