package wire

// Tag identifies the purpose of one IPC message in the broker protocol
// from spec §4.J and §6. The numeric values are part of the wire protocol
// and, once assigned, must never change — this is the resolution of the
// §9 Open Question asking where these constants live and what values they
// take.
type Tag uint16

const (
	TagSupervisorSpawnProcess    Tag = 0x0001
	TagSpawnResponse             Tag = 0x0002
	TagSupervisorCreateEndpoint  Tag = 0x0003
	TagEndpointResponse          Tag = 0x0004
	TagSupervisorGrantCap        Tag = 0x0005
	TagGrantCapResponse          Tag = 0x0006
	TagSupervisorConsoleInput    Tag = 0x0007
	TagSupervisorKillProcess     Tag = 0x0008
	TagServiceCapGranted         Tag = 0x0009
	TagSupervisorIPCDelivery     Tag = 0x000A
	TagVFSResponseCapGranted     Tag = 0x000B
	TagLookupService             Tag = 0x000C
	TagLookupResponse            Tag = 0x000D

	// Collaborator request/response tags, per spec §6's "Collaborator
	// interfaces" table. Each response is the request tag plus one.
	TagFSRead    Tag = 0x0100
	TagFSReadOK  Tag = 0x0101
	TagFSWrite   Tag = 0x0102
	TagFSWriteOK Tag = 0x0103
	TagFSStat    Tag = 0x0104
	TagFSStatOK  Tag = 0x0105
	TagFSExists  Tag = 0x0106
	TagFSExistsOK Tag = 0x0107
	TagFSMkdir   Tag = 0x0108
	TagFSMkdirOK Tag = 0x0109
	TagFSReaddir   Tag = 0x010A
	TagFSReaddirOK Tag = 0x010B
	TagFSUnlink    Tag = 0x010C
	TagFSUnlinkOK  Tag = 0x010D
	TagFSRmdir     Tag = 0x010E
	TagFSRmdirOK   Tag = 0x010F

	TagIdentityKeyGen       Tag = 0x0200
	TagIdentityKeyGenOK     Tag = 0x0201
	TagIdentityRecover      Tag = 0x0202
	TagIdentityRecoverOK    Tag = 0x0203
	TagIdentityMachineKey   Tag = 0x0204
	TagIdentityMachineKeyOK Tag = 0x0205
	TagIdentityEnroll       Tag = 0x0206
	TagIdentityEnrollOK     Tag = 0x0207
	TagIdentityLogin        Tag = 0x0208
	TagIdentityLoginOK      Tag = 0x0209

	// Keystore shares the filesystem service's primitives over a distinct
	// tag range, reserved for cryptographic material.
	TagKeystoreRead    Tag = 0x0300
	TagKeystoreReadOK  Tag = 0x0301
	TagKeystoreWrite   Tag = 0x0302
	TagKeystoreWriteOK Tag = 0x0303
)

func (t Tag) String() string {
	switch t {
	case TagSupervisorSpawnProcess:
		return "SUPERVISOR_SPAWN_PROCESS"
	case TagSpawnResponse:
		return "SPAWN_RESPONSE"
	case TagSupervisorCreateEndpoint:
		return "SUPERVISOR_CREATE_ENDPOINT"
	case TagEndpointResponse:
		return "ENDPOINT_RESPONSE"
	case TagSupervisorGrantCap:
		return "SUPERVISOR_GRANT_CAP"
	case TagGrantCapResponse:
		return "GRANT_CAP_RESPONSE"
	case TagSupervisorConsoleInput:
		return "SUPERVISOR_CONSOLE_INPUT"
	case TagSupervisorKillProcess:
		return "SUPERVISOR_KILL_PROCESS"
	case TagServiceCapGranted:
		return "SERVICE_CAP_GRANTED"
	case TagSupervisorIPCDelivery:
		return "SUPERVISOR_IPC_DELIVERY"
	case TagVFSResponseCapGranted:
		return "VFS_RESPONSE_CAP_GRANTED"
	case TagLookupService:
		return "LOOKUP_SERVICE"
	case TagLookupResponse:
		return "LOOKUP_RESPONSE"
	default:
		return "UNKNOWN"
	}
}
