package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports one finished conversion step
type WSProgressMessage struct {
	Type       string      `json:"type"`
	VideoID    int64       `json:"videoId"`
	Stage      string      `json:"stage"`
	Resolution string      `json:"resolution,omitempty"`
	Progress   int         `json:"progress"`
	Status     VideoStatus `json:"status"`
}

// WSCompleteMessage is sent once the HLS renditions are published
type WSCompleteMessage struct {
	Type        string   `json:"type"`
	VideoID     int64    `json:"videoId"`
	Resolutions []string `json:"resolutions"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type    string  `json:"type"`
	VideoID int64   `json:"videoId"`
	Error   WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
