// Package ipc is the unix-socket control surface between the hosting UI and
// the subtitle daemon: newline-delimited JSON request/response pairs.
package ipc

// Request is one control command. Value carries the argument for commands
// that take one (currently only "language").
type Request struct {
	Command string `json:"command"`
	Value   string `json:"value,omitempty"`
}

// Response is the daemon's reply to one Request.
type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
	Visible  bool   `json:"visible,omitempty"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
