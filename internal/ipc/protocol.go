package ipc

// Command names accepted by the control socket.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Stats is the pipeline progress reported by status.
type Stats struct {
	UptimeMS     int64 `json:"uptime_ms"`
	Frames       int64 `json:"frames"`
	Segments     int64 `json:"segments"`
	Lines        int64 `json:"lines"`
	Queued       int   `json:"queued"`
	Translated   int   `json:"translated,omitempty"`
	TranslateErr int   `json:"translate_failed,omitempty"`
}
