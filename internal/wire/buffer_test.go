package wire

import "testing"

func TestNameRoundTripUncompressed(t *testing.T) {
	buf := NewBuffer()
	name := "google.com."

	if err := buf.WriteName(name); err != nil {
		t.Fatalf("WriteName failed: %v", err)
	}

	buf.Seek(0)
	got, err := buf.ReadName()
	if err != nil {
		t.Fatalf("ReadName failed: %v", err)
	}
	if got != name {
		t.Errorf("got %q, want %q", got, name)
	}
}

func TestNameRootSerializesToSingleZeroByte(t *testing.T) {
	buf := NewBuffer()
	if err := buf.WriteName(""); err != nil {
		t.Fatalf("WriteName failed: %v", err)
	}
	if buf.Position() != 1 {
		t.Fatalf("expected 1 byte for root, got %d", buf.Position())
	}
}

func TestWriteNameNeverEmitsCompression(t *testing.T) {
	buf := NewBuffer()

	// Writing the same name twice must cost the same number of bytes both
	// times: WriteName never back-references an earlier occurrence with a
	// compression pointer, even though ReadName is happy to follow one.
	if err := buf.WriteName("www.example.com."); err != nil {
		t.Fatalf("WriteName (first) failed: %v", err)
	}
	firstCost := buf.Position()
	answerStart := buf.Position()
	if err := buf.WriteName("www.example.com."); err != nil {
		t.Fatalf("WriteName (second) failed: %v", err)
	}
	secondCost := buf.Position() - answerStart
	if secondCost != firstCost {
		t.Fatalf("expected uncompressed repeat name to cost %d bytes, cost %d", firstCost, secondCost)
	}

	buf.Seek(answerStart)
	got, err := buf.ReadName()
	if err != nil {
		t.Fatalf("ReadName failed: %v", err)
	}
	if got != "www.example.com." {
		t.Errorf("got %q, want %q", got, "www.example.com.")
	}
	if buf.Position() != answerStart+secondCost {
		t.Errorf("cursor should land just past the written labels, got %d want %d", buf.Position(), answerStart+secondCost)
	}
}

func TestNameRejectsForwardPointer(t *testing.T) {
	buf := NewBuffer()
	// Pointer at offset 0 pointing at offset 2 (itself lies before its
	// target) must be rejected.
	buf.Buf[0] = 0xC0
	buf.Buf[1] = 0x02
	buf.Buf[2] = 0

	buf.Seek(0)
	if _, err := buf.ReadName(); err == nil {
		t.Fatalf("expected forward pointer to be rejected")
	}
}

func TestNameRejectsReservedLengthBits(t *testing.T) {
	for _, prefix := range []byte{0x40, 0x80} {
		buf := NewBuffer()
		buf.Buf[0] = prefix
		buf.Seek(0)
		if _, err := buf.ReadName(); err == nil {
			t.Errorf("expected prefix %#x to be rejected", prefix)
		}
	}
}

func TestU16U32RoundTrip(t *testing.T) {
	buf := NewBuffer()
	if err := buf.WriteU16(0xBEEF); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if err := buf.WriteU32(0xDEADBEEF); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}

	buf.Seek(0)
	u16, err := buf.ReadU16()
	if err != nil || u16 != 0xBEEF {
		t.Errorf("ReadU16 = %x, %v", u16, err)
	}
	u32, err := buf.ReadU32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Errorf("ReadU32 = %x, %v", u32, err)
	}
}
