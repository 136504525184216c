package l0

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeHeaderSizeLaw(t *testing.T) {
	var enc Encoder
	for _, n := range []int{0, 1, 6, 7, 8, 127} {
		var buf bytes.Buffer
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		written, err := enc.Encode(&buf, Packet{Seq: 1, Code: 0x0A, Data: data})
		if err != nil {
			t.Fatalf("Encode(n=%d): %v", n, err)
		}
		want := 2 + n
		if n >= 7 {
			want = 3 + n
		}
		if written != want || buf.Len() != want {
			t.Errorf("n=%d: written=%d buf.Len()=%d want=%d", n, written, buf.Len(), want)
		}
	}
}

func TestEncodeTwoByteHeaderLayout(t *testing.T) {
	var enc Encoder
	var buf bytes.Buffer
	_, err := enc.Encode(&buf, Packet{Seq: 5, Code: 0x82, Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()
	want := []byte{5, 0x82 | (3 << 4), 1, 2, 3}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("layout mismatch (-got +want):\n%s", diff)
	}
}

func TestEncodeThreeByteHeaderLayout(t *testing.T) {
	var enc Encoder
	var buf bytes.Buffer
	data := bytes.Repeat([]byte{0xAB}, 10)
	_, err := enc.Encode(&buf, Packet{Seq: 9, Code: 0x02, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()
	want := append([]byte{9, 0x02 | 0x70, 10}, data...)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("layout mismatch (-got +want):\n%s", diff)
	}
}

func TestEncodeRoundTripThroughParser(t *testing.T) {
	var enc Encoder
	var p Parser
	feed(&p, []byte{0xFE, 0x01})

	pkt := Packet{Seq: 1, Code: 0xFF, Data: []byte{10, 20, 30}}
	var buf bytes.Buffer
	if _, err := enc.Encode(&buf, pkt); err != nil {
		t.Fatal(err)
	}

	r := feed(&p, buf.Bytes())
	want := &Packet{Seq: 1, Code: pkt.Code & codeMask, Data: pkt.Data}
	if diff := cmp.Diff(r.Packet, want); diff != "" {
		t.Fatalf("round-trip mismatch (-got +want):\n%s", diff)
	}
}

type erroringWriter struct{ err error }

func (w erroringWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestEncodePropagatesSinkError(t *testing.T) {
	var enc Encoder
	sinkErr := errors.New("boom")
	_, err := enc.Encode(erroringWriter{sinkErr}, Packet{Seq: 1, Code: 0})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
