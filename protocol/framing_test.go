package protocol

import (
	"bytes"
	"testing"
)

func mustBlock(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	block, err := AppendBlock(nil, seq, payload)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	return block
}

func TestAppendBlockLayout(t *testing.T) {
	block := mustBlock(t, 0x12, []byte{0x01, 0x02})

	if len(block) != 7 || block[0] != 7 || block[1] != 0x12 {
		t.Fatalf("Unexpected header: %v", block)
	}
	if block[len(block)-1] != MessageValueSync {
		t.Errorf("Missing trailing sync: %v", block)
	}
	crc := CRC16(block[:4])
	if block[4] != uint8(crc>>8) || block[5] != uint8(crc) {
		t.Errorf("Bad CRC bytes %x %x, want %04x", block[4], block[5], crc)
	}
}

func TestAppendBlockTooLong(t *testing.T) {
	if _, err := AppendBlock(nil, MessageDest, make([]byte, MessageLengthMax)); err != ErrMessageTooLong {
		t.Errorf("Expected ErrMessageTooLong, got %v", err)
	}
}

func TestFramerSplitsStream(t *testing.T) {
	a := mustBlock(t, 0x10, []byte{0x05})
	b := mustBlock(t, 0x11, []byte{0x06, 0x07})
	stream := append(append([]byte{}, a...), b...)

	f := NewFramer(true)
	block, rest := f.Next(stream)
	if !bytes.Equal(block, a) {
		t.Fatalf("First block = %v, want %v", block, a)
	}
	block, rest = f.Next(rest)
	if !bytes.Equal(BlockPayload(block), []byte{0x06, 0x07}) || BlockSeq(block) != 0x11 {
		t.Fatalf("Second block = %v", block)
	}
	if block, rest = f.Next(rest); block != nil || len(rest) != 0 {
		t.Errorf("Expected end of stream, got %v / %v", block, rest)
	}
}

func TestFramerWaitsForPartialBlock(t *testing.T) {
	a := mustBlock(t, 0x10, []byte{0x05, 0x06})

	f := NewFramer(true)
	block, rest := f.Next(a[:4])
	if block != nil || len(rest) != 4 {
		t.Errorf("Partial block: got %v, rest %d bytes", block, len(rest))
	}
	if !f.Synchronized() {
		t.Error("Partial block should not drop sync")
	}
}

func TestFramerResyncsAfterCorruption(t *testing.T) {
	bad := mustBlock(t, 0x10, []byte{0x05})
	bad[2] ^= 0xFF
	good := mustBlock(t, 0x11, []byte{0x09})

	resyncs := 0
	f := NewFramer(true)
	f.OnResync = func() { resyncs++ }

	block, _ := f.Next(append(bad, good...))
	if !bytes.Equal(block, good) {
		t.Fatalf("Expected to recover the good block, got %v", block)
	}
	if resyncs != 1 {
		t.Errorf("Expected 1 resync, got %d", resyncs)
	}
}

func TestFramerRejectsMissingDest(t *testing.T) {
	block := mustBlock(t, 0x01, []byte{0x05})

	f := NewFramer(true)
	if got, _ := f.Next(block); got != nil {
		t.Errorf("Block without destination bits accepted: %v", got)
	}

	f = NewFramer(false)
	if got, _ := f.Next(block); got == nil {
		t.Error("Host framer should accept any sequence byte")
	}
}
