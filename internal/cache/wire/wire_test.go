package wire

import (
	"testing"
	"time"

	"github.com/imageflow/cascade/internal/cache"
)

func TestEncodeDecodeRoundTripRaw(t *testing.T) {
	meta := cache.NewEntryMetadata("image/png", time.Unix(1700000000, 0).UTC(), 4)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	blob, err := Encode(meta, payload, false)
	if err != nil {
		t.Fatal(err)
	}

	gotMeta, gotPayload, err := Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if gotMeta.ContentType != meta.ContentType || !gotMeta.HasContentType {
		t.Fatalf("metadata mismatch: %+v", gotMeta)
	}
	if !gotMeta.CreatedAt.Equal(meta.CreatedAt) {
		t.Fatalf("createdAt mismatch: got %v want %v", gotMeta.CreatedAt, meta.CreatedAt)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: %x", gotPayload)
	}
}

func TestEncodeDecodeRoundTripCompressed(t *testing.T) {
	meta := cache.NewEntryMetadata("text/plain", time.Unix(1700000100, 0).UTC(), 0)
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to give snappy something to compress")

	blob, err := Encode(meta, payload, true)
	if err != nil {
		t.Fatal(err)
	}
	if blob[1] != flagSnappy {
		t.Fatalf("expected compressed flag byte, got %d", blob[1])
	}

	gotMeta, gotPayload, err := Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if gotMeta.ContentType != meta.ContentType {
		t.Fatalf("content type mismatch: %q", gotMeta.ContentType)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch after decompression")
	}
}

func TestDecodeRejectsShortEnvelope(t *testing.T) {
	if _, _, err := Decode([]byte{0x01}); err == nil {
		t.Fatal("expected an error for a truncated envelope")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, _, err := Decode([]byte{0x09, 0x00, 0x00}); err == nil {
		t.Fatal("expected an error for an unsupported envelope version")
	}
}
