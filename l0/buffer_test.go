package l0

import "testing"

func TestFixedBufferAppendAndReset(t *testing.T) {
	var b FixedBuffer
	for i := 0; i < 10; i++ {
		b.Append(byte(i))
	}
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", b.Len())
	}
	got := b.Bytes()
	for i, v := range got {
		if v != byte(i) {
			t.Fatalf("Bytes()[%d] = %d, want %d", i, v, i)
		}
	}
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset() = %d, want 0", b.Len())
	}
	if b.Bytes() != nil {
		t.Fatalf("Bytes() after Reset() = %v, want nil", b.Bytes())
	}
}

func TestFixedBufferCapsAtCapacity(t *testing.T) {
	var b FixedBuffer
	for i := 0; i < MaxDataLen+10; i++ {
		b.Append(0x42)
	}
	if b.Len() != MaxDataLen+1 {
		t.Fatalf("Len() = %d, want %d (buffer capacity)", b.Len(), MaxDataLen+1)
	}
}
