package supervisor

import (
	"encoding/binary"
	"fmt"

	"github.com/zeroos-kernel/zeroos/internal/kernel"
	"github.com/zeroos-kernel/zeroos/internal/syscall"
	"github.com/zeroos-kernel/zeroos/internal/wire"
)

// descriptorHeaderSize is the fixed prefix both HALs write ahead of a
// syscall's variable-length payload: Num, then three generic uint32
// arguments whose meaning depends on Num, mirroring how the dispatcher's
// own Request fields are reused across syscalls (Target doubles as an
// endpoint id for ConsoleInputDelivery, for instance).
const descriptorHeaderSize = 16

// decodeRequest turns one HAL-reported syscall descriptor into a
// syscall.Request. The byte layout isn't part of the kernel's public
// contract — only the decoded Request crosses into internal/syscall — so
// this is free to evolve independently of the dispatcher's own
// canonical hash encoding in encodeArgs.
func decodeRequest(caller kernel.PID, data []byte) (syscall.Request, error) {
	if len(data) < descriptorHeaderSize {
		return syscall.Request{}, fmt.Errorf("supervisor: descriptor shorter than header (%d bytes)", len(data))
	}
	num := syscall.Num(binary.LittleEndian.Uint32(data[0:4]))
	a0 := binary.LittleEndian.Uint32(data[4:8])
	a1 := binary.LittleEndian.Uint32(data[8:12])
	a2 := binary.LittleEndian.Uint32(data[12:16])
	extra := data[descriptorHeaderSize:]

	req := syscall.Request{Caller: caller, Num: num}

	switch num {
	case syscall.Debug:
		req.Text = string(extra)
	case syscall.ConsoleWrite:
		req.Payload = extra
	case syscall.Exit:
		req.ExitCode = int32(a0)
	case syscall.Kill:
		req.Target = kernel.PID(a0)
	case syscall.CreateEndpoint:
		req.SoftCap = int(a0)
	case syscall.CreateEndpointFor:
		req.Target = kernel.PID(a0)
		req.SoftCap = int(a1)
	case syscall.CapGrant, syscall.CapRevoke:
		req.Slot = a0
		req.Target = kernel.PID(a1)
		req.Perms = kernel.Perm(a2)
	case syscall.GetProcessInfo:
		req.Target = kernel.PID(a0)
	case syscall.RegisterProcess:
		req.Name = string(extra)
	case syscall.Send:
		f, err := wire.Decode(extra)
		if err != nil {
			return syscall.Request{}, fmt.Errorf("supervisor: decode send frame: %w", err)
		}
		req.Slot = a0
		req.Tag = f.Tag
		req.Payload = f.Payload
		req.Caps = f.Caps
	case syscall.Receive, syscall.DestroyEndpoint:
		req.Slot = a0
	case syscall.StorageRead, syscall.StorageDelete, syscall.StorageExists, syscall.StorageList:
		req.Key = string(extra)
	case syscall.StorageWrite:
		keyLen := int(a0)
		if keyLen > len(extra) {
			return syscall.Request{}, fmt.Errorf("supervisor: storage write key length %d exceeds payload", keyLen)
		}
		req.Key = string(extra[:keyLen])
		req.Value = extra[keyLen:]
	case syscall.StorageBatch:
		req.Batch = splitKeys(extra)
	case syscall.NetworkFetchStart:
		methodLen := int(a0)
		if methodLen > len(extra) {
			return syscall.Request{}, fmt.Errorf("supervisor: fetch method length %d exceeds payload", methodLen)
		}
		req.Method = string(extra[:methodLen])
		req.URL = string(extra[methodLen:])
	case syscall.LoadBinary:
		req.BinaryName = string(extra)
	case syscall.ConsoleInputDelivery:
		req.Target = kernel.PID(a0)
		req.Tag = a1
		req.Payload = extra
	}

	return req, nil
}

// splitKeys parses StorageBatch's nul-separated key list.
func splitKeys(extra []byte) []string {
	var out []string
	start := 0
	for i, b := range extra {
		if b == 0 {
			out = append(out, string(extra[start:i]))
			start = i + 1
		}
	}
	if start < len(extra) {
		out = append(out, string(extra[start:]))
	}
	return out
}
