// Package collab holds the message contracts for services the kernel
// routes capability-gated IPC to but does not implement itself: a
// filesystem service, an identity service, and a keystore service. Each
// lives behind the wire.Tag ranges reserved for it in spec §6's
// "Collaborator interfaces" table. Only the request/response shapes live
// here — the services themselves are a separate process's concern, the
// same way the teacher's ws.protocol defines PTY/tunnel message shapes
// without itself terminating a PTY.
package collab

import "encoding/json"

// FSReadRequest asks the filesystem collaborator for a file's contents,
// carried as wire.TagFSRead's JSON payload.
type FSReadRequest struct {
	Path string `json:"path"`
}

// FSReadResponse answers wire.TagFSReadOK.
type FSReadResponse struct {
	Data []byte `json:"data"`
}

// FSWriteRequest carries wire.TagFSWrite.
type FSWriteRequest struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

// FSWriteResponse answers wire.TagFSWriteOK.
type FSWriteResponse struct {
	BytesWritten int `json:"bytes_written"`
}

// FSStatRequest carries wire.TagFSStat.
type FSStatRequest struct {
	Path string `json:"path"`
}

// FSStatResponse answers wire.TagFSStatOK.
type FSStatResponse struct {
	Size    int64 `json:"size"`
	IsDir   bool  `json:"is_dir"`
	ModTime int64 `json:"mod_time"` // unix seconds
}

// FSExistsRequest carries wire.TagFSExists.
type FSExistsRequest struct {
	Path string `json:"path"`
}

// FSExistsResponse answers wire.TagFSExistsOK.
type FSExistsResponse struct {
	Exists bool `json:"exists"`
}

// FSMkdirRequest carries wire.TagFSMkdir.
type FSMkdirRequest struct {
	Path string `json:"path"`
}

// FSMkdirResponse answers wire.TagFSMkdirOK.
type FSMkdirResponse struct{}

// FSReaddirRequest carries wire.TagFSReaddir.
type FSReaddirRequest struct {
	Path string `json:"path"`
}

// FSReaddirResponse answers wire.TagFSReaddirOK.
type FSReaddirResponse struct {
	Entries []string `json:"entries"`
}

// FSUnlinkRequest carries wire.TagFSUnlink.
type FSUnlinkRequest struct {
	Path string `json:"path"`
}

// FSUnlinkResponse answers wire.TagFSUnlinkOK.
type FSUnlinkResponse struct{}

// FSRmdirRequest carries wire.TagFSRmdir.
type FSRmdirRequest struct {
	Path string `json:"path"`
}

// FSRmdirResponse answers wire.TagFSRmdirOK.
type FSRmdirResponse struct{}

// FSError is the shared error shape a filesystem collaborator returns
// instead of an OK-tagged response; the caller distinguishes the two by
// tag, not by a field inside the payload.
type FSError struct {
	Message string `json:"message"`
}

// Marshal and Unmarshal wrap encoding/json so every contract in this
// package shares one (de)serialization path; swapping the wire format for
// the collaborator channel later only touches these two functions.
func Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
