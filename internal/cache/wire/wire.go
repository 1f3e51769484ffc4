// Package wire implements the on-disk/over-the-wire envelope that providers
// needing a single blob per key (bbolt, badger, redis) store: an EntryMetadata
// header followed by the payload, msgp-encoded and optionally snappy
// compressed.
package wire

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"

	"github.com/imageflow/cascade/internal/cache"
)

const (
	flagRaw      byte = 0x00
	flagSnappy   byte = 0x01
	envelopeVers byte = 1
)

// Encode marshals metadata and payload into a single envelope. When
// compress is true the msgp-encoded body is snappy-compressed before the
// leading flag byte is written.
func Encode(metadata cache.EntryMetadata, payload []byte, compress bool) ([]byte, error) {
	var b []byte
	b = msgp.AppendArrayHeader(b, 5)
	b = msgp.AppendString(b, metadata.ContentType)
	b = msgp.AppendBool(b, metadata.HasContentType)
	b = msgp.AppendTime(b, metadata.CreatedAt)
	b = msgp.AppendInt64(b, metadata.ContentLength)
	b = msgp.AppendBytes(b, payload)

	flag := flagRaw
	if compress {
		flag = flagSnappy
		b = snappy.Encode(nil, b)
	}

	out := make([]byte, 0, len(b)+2)
	out = append(out, envelopeVers, flag)
	out = append(out, b...)
	return out, nil
}

// Decode reverses Encode, transparently decompressing when the envelope
// says it needs it.
func Decode(blob []byte) (cache.EntryMetadata, []byte, error) {
	var meta cache.EntryMetadata
	if len(blob) < 2 {
		return meta, nil, fmt.Errorf("wire: envelope too short (%d bytes)", len(blob))
	}
	if blob[0] != envelopeVers {
		return meta, nil, fmt.Errorf("wire: unsupported envelope version %d", blob[0])
	}
	flag := blob[1]
	body := blob[2:]

	if flag == flagSnappy {
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return meta, nil, fmt.Errorf("wire: snappy decode: %w", err)
		}
		body = decoded
	}

	b := body
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read array header: %w", err)
	}
	if n != 5 {
		return meta, nil, fmt.Errorf("wire: expected 5 envelope fields, got %d", n)
	}

	meta.ContentType, b, err = msgp.ReadStringBytes(b)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read content type: %w", err)
	}
	meta.HasContentType, b, err = msgp.ReadBoolBytes(b)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read has-content-type: %w", err)
	}
	meta.CreatedAt, b, err = msgp.ReadTimeBytes(b)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read created-at: %w", err)
	}
	meta.ContentLength, b, err = msgp.ReadInt64Bytes(b)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read content length: %w", err)
	}
	var payload []byte
	payload, _, err = msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return meta, nil, fmt.Errorf("wire: read payload: %w", err)
	}

	return meta, payload, nil
}

// EncodedSize estimates the msgp-encoded size of metadata plus an
// uncompressed payload of payloadLen bytes, useful for providers that want
// to enforce a size budget before compressing.
func EncodedSize(metadata cache.EntryMetadata, payloadLen int) int {
	return msgp.StringPrefixSize + len(metadata.ContentType) +
		msgp.BoolSize +
		msgp.TimeSize +
		msgp.Int64Size +
		msgp.BytesPrefixSize + payloadLen +
		2
}
