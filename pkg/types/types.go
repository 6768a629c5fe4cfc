package types

import (
	"strconv"
	"time"
)

// NetworkMode selects how a runner container is wired to the host network.
type NetworkMode string

const (
	// NetworkModeDefault publishes the container port to an allocated host port.
	NetworkModeDefault NetworkMode = "default"
	// NetworkModeNone attaches no network; the runner is reachable only from
	// inside the container (endpoint is reported as isolated).
	NetworkModeNone NetworkMode = "none"
)

// CustomNetwork reports whether the mode names a user-defined network.
// Anything other than "default" and "none" is treated as a network name.
func (m NetworkMode) CustomNetwork() bool {
	return m != NetworkModeDefault && m != NetworkModeNone
}

// IsolatedEndpoint is the endpoint string reported for runners provisioned
// with NetworkModeNone.
const IsolatedEndpoint = "N/A (isolated network mode)"

// SessionLabelKey is the container label carrying the owning session id.
const SessionLabelKey = "taylored-runner-session-id"

// RunnerRecord is the control-plane view of one live runner container.
type RunnerRecord struct {
	SessionID    string      `json:"sessionId"`
	ContainerID  string      `json:"containerId"`
	HostPort     int         `json:"hostPort,omitempty"` // absent in isolated mode
	NetworkMode  NetworkMode `json:"networkMode"`
	LastActivity time.Time   `json:"lastActivity"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Endpoint renders the client-facing endpoint for this record.
func (r *RunnerRecord) Endpoint(host string) string {
	if r.NetworkMode == NetworkModeNone {
		return IsolatedEndpoint
	}
	return host + ":" + strconv.Itoa(r.HostPort)
}

// DirEntry is one entry of a runner directory listing.
type DirEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
}

// Event names exchanged on the runner's websocket channel.
const (
	// Inbound (client to runner)
	EventTayloredRun   = "tayloredRun"
	EventListDirectory = "listDirectory"
	EventDownloadFile  = "downloadFile"
	EventDisconnect    = "disconnect"

	// Outbound (runner to client)
	EventTayloredOutput   = "tayloredOutput"
	EventTayloredError    = "tayloredError"
	EventTayloredRunError = "tayloredRunError"
	EventDirectoryListing = "directoryListing"
	EventFileContent      = "fileContent"
)

// RunRequest is the payload of a tayloredRun event.
type RunRequest struct {
	Body string `json:"body"`
}

// ListDirectoryRequest is the payload of a listDirectory event.
type ListDirectoryRequest struct {
	Path string `json:"path,omitempty"`
}

// DownloadFileRequest is the payload of a downloadFile event.
type DownloadFileRequest struct {
	Path string `json:"path"`
}

// RunOutput is the payload of a tayloredOutput event. One event is emitted
// per chunk read from the processing tool's stdout.
type RunOutput struct {
	ID     int    `json:"id"`
	Output string `json:"output"`
}

// RunErrorOutput is the payload of a tayloredError event (stderr chunks).
type RunErrorOutput struct {
	ID    int    `json:"id"`
	Error string `json:"error"`
}

// RunError is the payload of a tayloredRunError event. ID is zero when the
// failure happened before a snippet id could be extracted.
type RunError struct {
	ID    int    `json:"id,omitempty"`
	Error string `json:"error"`
}

// DirectoryListing is the payload of a directoryListing event.
type DirectoryListing struct {
	Path  string     `json:"path"`
	Files []DirEntry `json:"files"`
}

// FileContent is the payload of a fileContent event. Content is the raw file
// bytes; encoding/json renders it base64 on the wire.
type FileContent struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}
