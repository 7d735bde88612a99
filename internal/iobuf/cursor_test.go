package iobuf

import "testing"

func TestBufferReadWrite(t *testing.T) {
	data := make([]byte, 16)
	b := Wrap(data)

	if err := b.SetU32(0, 0xDEADBEEF); err != nil {
		t.Fatalf("SetU32 failed: %v", err)
	}

	got, err := b.U32(0)
	if err != nil {
		t.Fatalf("U32 failed: %v", err)
	}

	if got != 0xDEADBEEF {
		t.Errorf("U32() = 0x%x, want 0xDEADBEEF", got)
	}

	if _, err := b.U32(14); err == nil {
		t.Errorf("expected short-buffer error reading past end")
	}
}

func TestBufferAddU32(t *testing.T) {
	data := make([]byte, 4)
	b := Wrap(data)

	if err := b.SetU32(0, 100); err != nil {
		t.Fatalf("SetU32 failed: %v", err)
	}

	if err := b.AddU32(0, -30); err != nil {
		t.Fatalf("AddU32 failed: %v", err)
	}

	got, _ := b.U32(0)
	if got != 70 {
		t.Errorf("AddU32() result = %d, want 70", got)
	}
}

func TestCursorSequentialRead(t *testing.T) {
	data := []byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	c := NewCursor(data)

	u16, err := c.ReadU16()
	if err != nil || u16 != 1 {
		t.Fatalf("ReadU16() = %d, %v, want 1, nil", u16, err)
	}

	u32, err := c.ReadU32()
	if err != nil || u32 != 2 {
		t.Fatalf("ReadU32() = %d, %v, want 2, nil", u32, err)
	}

	b, err := c.ReadBytes(2)
	if err != nil {
		t.Fatalf("ReadBytes() failed: %v", err)
	}

	if b[0] != 0xAA || b[1] != 0xBB {
		t.Errorf("ReadBytes() = %v, want [0xAA 0xBB]", b)
	}

	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
}
