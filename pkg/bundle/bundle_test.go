package bundle

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

// buildSyntheticBundle constructs a minimal valid single-item ANS-104
// bundle buffer in memory, matching the on-disk layout byte for byte.
func buildSyntheticBundle(t *testing.T, tags []Tag, data []byte) (buf []byte, rawID [32]byte) {
	t.Helper()

	for i := range rawID {
		rawID[i] = byte(i + 1)
	}

	tagBytes := encodeAvroTagArray(tags)

	sigType := make([]byte, 2)
	binary.LittleEndian.PutUint16(sigType, 2) // Ed25519: sig 64, pub 32
	sig := bytes.Repeat([]byte{0xAA}, 64)
	pub := bytes.Repeat([]byte{0xBB}, 32)

	var envelope bytes.Buffer
	envelope.Write(sigType)
	envelope.Write(sig)
	envelope.Write(pub)
	envelope.WriteByte(0) // target not present
	envelope.WriteByte(0) // anchor not present

	tagCount := make([]byte, 8)
	binary.LittleEndian.PutUint64(tagCount, uint64(len(tags)))
	envelope.Write(tagCount)

	tagBytesLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(tagBytesLen, uint64(len(tagBytes)))
	envelope.Write(tagBytesLen)
	envelope.Write(tagBytes)

	envelope.Write(data)

	itemSize := envelope.Len()

	var out bytes.Buffer
	count32 := make([]byte, 32)
	count32[0] = 1 // item count = 1, little-endian u256
	out.Write(count32)

	size32 := make([]byte, 32)
	binary.LittleEndian.PutUint64(size32[:8], uint64(itemSize))
	out.Write(size32)
	out.Write(rawID[:])

	out.Write(envelope.Bytes())

	return out.Bytes(), rawID
}

func TestListItems_SingleItem(t *testing.T) {
	data := []byte("hello bundle")
	raw, rawID := buildSyntheticBundle(t, []Tag{{Name: "k", Value: "v"}}, data)

	items, err := ListItems(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	wantID := base64.RawURLEncoding.EncodeToString(rawID[:])
	if items[0].ID != wantID {
		t.Fatalf("expected id %s, got %s", wantID, items[0].ID)
	}
	if items[0].Offset != 96 {
		t.Fatalf("expected offset 96, got %d", items[0].Offset)
	}
}

func TestExtractItemWithSize_DecodesEnvelope(t *testing.T) {
	data := []byte("item payload bytes")
	tags := []Tag{{Name: "Content-Type", Value: "text/plain"}, {Name: "Bundle-Format", Value: "binary"}}
	raw, _ := buildSyntheticBundle(t, tags, data)

	items, err := ListItems(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}

	details, err := ExtractItemWithSize(bytes.NewReader(raw), items[0])
	if err != nil {
		t.Fatalf("ExtractItemWithSize: %v", err)
	}

	if details.SignatureType != 2 {
		t.Fatalf("expected signature type 2, got %d", details.SignatureType)
	}
	if len(details.Tags) != len(tags) {
		t.Fatalf("expected %d tags, got %d", len(tags), len(details.Tags))
	}
	if details.Target != nil || details.Anchor != nil {
		t.Fatal("expected target/anchor to be absent")
	}
	if details.DataSize != int64(len(data)) {
		t.Fatalf("expected data size %d, got %d", len(data), details.DataSize)
	}

	var out bytes.Buffer
	if err := CopyItemData(bytes.NewReader(raw), &out, details.DataOffset, details.DataSize); err != nil {
		t.Fatalf("CopyItemData: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("expected data %q, got %q", data, out.Bytes())
	}

	if !IsBundle(tags) {
		t.Fatal("expected tags to mark item as a bundle")
	}
}

func TestExtractItem_RejectsUnknownSignatureType(t *testing.T) {
	var buf bytes.Buffer
	sigType := make([]byte, 2)
	binary.LittleEndian.PutUint16(sigType, 99)
	buf.Write(sigType)

	_, err := ExtractItem(bytes.NewReader(buf.Bytes()), 0)
	if err == nil {
		t.Fatal("expected error for unknown signature type")
	}
}

func TestIsBundle_RequiresBothTags(t *testing.T) {
	if IsBundle([]Tag{{Name: BundlrAppNameTag, Value: BundlrAppNameVal}}) {
		t.Fatal("expected IsBundle to require the version tag too")
	}
	if IsBundle(nil) {
		t.Fatal("expected IsBundle(nil) to be false")
	}
}
