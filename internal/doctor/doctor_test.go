package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckEndpointEmpty(t *testing.T) {
	check := checkEndpoint(context.Background(), "recognizer.endpoint", "")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "not configured")
}

func TestCheckEndpointUnreachable(t *testing.T) {
	check := checkEndpoint(context.Background(), "recognizer.endpoint", "ws://127.0.0.1:1/recognize")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "dial")
}

func TestCheckEndpointReachable(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	check := checkEndpoint(context.Background(), "call.endpoint", url)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reachable")
}

func TestCheckRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	check := checkRuntimeDir()
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "undertone.sock")
}

func TestCheckRuntimeDirMissingEnv(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	check := checkRuntimeDir()
	require.False(t, check.Pass)
}
