package packet

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDispatchRoutesByOpcodeAndState(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var got byte
	reg.Register(C_OPCODE_LOGIN, []SessionState{StateGreeting}, func(sess any, r *Reader) error {
		got = r.Opcode()
		return nil
	})

	if err := reg.Dispatch(nil, StateGreeting, []byte{C_OPCODE_LOGIN}); err != nil {
		t.Fatal(err)
	}
	if got != C_OPCODE_LOGIN {
		t.Fatalf("handler saw opcode %#x", got)
	}

	err := reg.Dispatch(nil, StateInGame, []byte{C_OPCODE_LOGIN})
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("state mismatch err = %v", err)
	}
}

func TestDispatchRejectsUnknownOpcode(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if err := reg.Dispatch(nil, StateGreeting, []byte{0x7F}); err == nil {
		t.Fatal("unknown opcode accepted")
	}
	if err := reg.Dispatch(nil, StateGreeting, nil); err == nil {
		t.Fatal("empty packet accepted")
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(C_OPCODE_PROCEED_TURN, []SessionState{StateInGame}, func(sess any, r *Reader) error {
		panic("bad payload")
	})

	err := reg.Dispatch(nil, StateInGame, []byte{C_OPCODE_PROCEED_TURN})
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v, want recovered panic", err)
	}
}

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriterWithOpcode(S_OPCODE_CHANGE)
	w.WriteC(7)
	w.WriteH(0xBEEF)
	w.WriteD(-5)
	w.WriteQ(1 << 40)
	w.WriteS("balin")
	w.WriteBool(true)

	r := NewReader(w.Bytes())
	if r.Opcode() != S_OPCODE_CHANGE {
		t.Fatalf("opcode = %#x", r.Opcode())
	}
	if v := r.ReadC(); v != 7 {
		t.Fatalf("C = %d", v)
	}
	if v := r.ReadH(); v != 0xBEEF {
		t.Fatalf("H = %#x", v)
	}
	if v := r.ReadD(); v != -5 {
		t.Fatalf("D = %d", v)
	}
	if v := r.ReadQ(); v != 1<<40 {
		t.Fatalf("Q = %d", v)
	}
	if v := r.ReadS(); v != "balin" {
		t.Fatalf("S = %q", v)
	}
	if v := r.ReadC(); v != 1 {
		t.Fatalf("bool = %d", v)
	}
	if r.Remaining() != 0 {
		t.Fatalf("remaining = %d", r.Remaining())
	}
}

func TestReaderTruncatedPayloadReturnsZero(t *testing.T) {
	r := NewReader([]byte{S_OPCODE_CHANGE, 0x01})
	if v := r.ReadD(); v != 0 {
		t.Fatalf("truncated D = %d", v)
	}
	// an unterminated string reads to the end of the payload
	if v := r.ReadS(); v != "\x01" {
		t.Fatalf("truncated S = %q", v)
	}
}
