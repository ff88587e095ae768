package net

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{
		{0x01},
		{0x87, 0xDE, 0xAD, 0xBE, 0xEF},
	}
	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame = %x, want %x", got, want)
		}
	}
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	// header says 2 bytes total, leaving no payload
	if _, err := ReadFrame(bytes.NewReader([]byte{0x02, 0x00})); err == nil {
		t.Fatal("zero-payload frame accepted")
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00})); err == nil {
		t.Fatal("zero-length frame accepted")
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	// header promises 4 payload bytes, only 1 present
	if _, err := ReadFrame(bytes.NewReader([]byte{0x06, 0x00, 0x01})); err == nil {
		t.Fatal("truncated frame accepted")
	}
}
