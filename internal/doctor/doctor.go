// Package doctor runs runtime readiness diagnostics for config, audio,
// and the recognition and call endpoints.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"undertone/internal/audio"
	"undertone/internal/config"
	"undertone/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks,
		checkRuntimeDir(),
		checkAudioInput(ctx, cfg.Config),
		checkEndpoint(ctx, "recognizer.endpoint", cfg.Config.Recognizer.URL),
		checkEndpoint(ctx, "call.endpoint", cfg.Config.Call.URL),
	)
	return Report{Checks: checks}
}

// checkRuntimeDir verifies the control socket directory is usable.
func checkRuntimeDir() Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "runtime.dir", Pass: false, Message: err.Error()}
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "runtime.dir", Pass: false, Message: fmt.Sprintf("stat %q: %v", dir, err)}
	}
	if !info.IsDir() {
		return Check{Name: "runtime.dir", Pass: false, Message: fmt.Sprintf("%q is not a directory", dir)}
	}
	return Check{Name: "runtime.dir", Pass: true, Message: fmt.Sprintf("socket at %q", path)}
}

// checkAudioInput lists live devices and verifies a usable microphone.
func checkAudioInput(ctx context.Context, cfg config.Config) Check {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return Check{Name: "audio.input", Pass: false, Message: err.Error()}
	}
	if !audio.HasUsableInput(devices) {
		return Check{Name: "audio.input", Pass: false, Message: "no usable microphone found"}
	}
	message := fmt.Sprintf("%d input source(s)", len(devices))
	if strings.TrimSpace(cfg.Audio.Input) != "" && cfg.Audio.Input != "default" {
		message += fmt.Sprintf(", preference %q", cfg.Audio.Input)
	}
	return Check{Name: "audio.input", Pass: true, Message: message}
}

// checkEndpoint dials a websocket endpoint and hangs up immediately.
func checkEndpoint(ctx context.Context, name string, url string) Check {
	if strings.TrimSpace(url) == "" {
		return Check{Name: name, Pass: false, Message: "endpoint is not configured"}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("dial %q: %v", url, err)}
	}
	_ = conn.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %q", url)}
}
