package chunk

import (
	"bytes"
	"context"
	"testing"

	"github.com/flemzord/epcisconv/internal/stream"
)

func TestNewRejectsNegativeSize(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Size: -1}); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestAccumulatorExactMultiple(t *testing.T) {
	t.Parallel()

	acc, err := New(Config{Size: 4})
	if err != nil {
		t.Fatal(err)
	}

	chunks := acc.Push([]byte("abcdefgh"))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if string(chunks[0].Data) != "abcd" || string(chunks[1].Data) != "efgh" {
		t.Fatalf("unexpected chunk contents: %q %q", chunks[0].Data, chunks[1].Data)
	}
	if tail := acc.Flush(); tail != nil {
		t.Fatalf("expected no residual, got %q", tail.Data)
	}
}

func TestAccumulatorResidualFlush(t *testing.T) {
	t.Parallel()

	acc, err := New(Config{Size: 4})
	if err != nil {
		t.Fatal(err)
	}

	chunks := acc.Push([]byte("abcde"))
	if len(chunks) != 1 || string(chunks[0].Data) != "abcd" {
		t.Fatalf("unexpected first-pass chunks: %v", chunks)
	}
	tail := acc.Flush()
	if tail == nil || string(tail.Data) != "e" {
		t.Fatalf("expected residual 'e', got %v", tail)
	}
}

func TestRechunkReframesArbitrarySizes(t *testing.T) {
	t.Parallel()

	upstream := stream.FromSlice([]Chunk{
		{Data: []byte("ab")},
		{Data: []byte("cdefgh")},
		{Data: []byte("i")},
	})

	out, err := Rechunk(upstream, Config{Size: 4})
	if err != nil {
		t.Fatal(err)
	}

	var got [][]byte
	ctx := context.Background()
	for {
		c, err, ok := out.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, c.Data)
	}

	want := [][]byte{[]byte("abcd"), []byte("efgh"), []byte("i")}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("chunk %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestRechunkPropagatesErrorWithoutFlush(t *testing.T) {
	t.Parallel()

	boom := context.DeadlineExceeded
	upstream := stream.New(func(ctx context.Context) (Chunk, error, bool) {
		return Chunk{}, boom, false
	})

	out, err := Rechunk(upstream, Config{Size: 4})
	if err != nil {
		t.Fatal(err)
	}

	_, gotErr, ok := out.Next(context.Background())
	if ok || gotErr != boom {
		t.Fatalf("expected propagated error, got ok=%v err=%v", ok, gotErr)
	}
}
