package main

import (
	"encoding/binary"
	"testing"
)

func TestWavEncodeHeader(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 16000)
	buf := wavEncode(samples, 16000)

	if len(buf) != 44+len(samples)*2 {
		t.Fatalf("encoded length = %d, want %d", len(buf), 44+len(samples)*2)
	}
	if string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(buf[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(buf[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data length = %d, want %d", got, len(samples)*2)
	}
}
