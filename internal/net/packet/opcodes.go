package packet

// Client → server opcodes.
const (
	C_OPCODE_LOGIN        byte = 0x01 // account name + password
	C_OPCODE_LOGOUT       byte = 0x02
	C_OPCODE_PROCEED_TURN byte = 0x03 // controllable id → action list
	C_OPCODE_WORLD_CONFIG byte = 0x04 // runtime world config (min tick time)
	C_OPCODE_SAVE         byte = 0x05
	C_OPCODE_SCRIPT       byte = 0x06 // admin lua console
)

// Server → client opcodes.
const (
	S_OPCODE_LOGIN_REPLY    byte = 0x80
	S_OPCODE_LOGOUT_REPLY   byte = 0x81
	S_OPCODE_WORLD_DATA     byte = 0x82 // tick, date, turn mode
	S_OPCODE_MAP_DATA       byte = 0x83 // environment metadata
	S_OPCODE_TERRAIN_REVEAL byte = 0x84 // batch of newly visible tiles
	S_OPCODE_OBJECT_DATA    byte = 0x85 // full description of one object
	S_OPCODE_CONTROLLABLES  byte = 0x86 // add/remove controllable ids
	S_OPCODE_CHANGE         byte = 0x87 // one world change
	S_OPCODE_SAVE_REPLY     byte = 0x88
	S_OPCODE_SCRIPT_OUTPUT  byte = 0x89
	S_OPCODE_ERROR          byte = 0x8A
)

// Change kind tags carried in S_OPCODE_CHANGE payloads.
const (
	ChangeKindObjectCreated    byte = 1
	ChangeKindObjectDestructed byte = 2
	ChangeKindObjectMove       byte = 3
	ChangeKindObjectMoveLoc    byte = 4
	ChangeKindMap              byte = 5
	ChangeKindProperty         byte = 6
	ChangeKindActionStarted    byte = 7
	ChangeKindActionProgress   byte = 8
	ChangeKindActionDone       byte = 9
	ChangeKindTurnStart        byte = 10
	ChangeKindTurnEnd          byte = 11
	ChangeKindTickStart        byte = 12
	ChangeKindGameDate         byte = 13
)
