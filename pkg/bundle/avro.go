package bundle

import (
	"bytes"
	"fmt"
)

// decodeZigzagVarint reads an Avro zigzag-encoded variable-length long from
// the start of data and returns its decoded value and the number of bytes consumed.
func decodeZigzagVarint(data []byte) (int64, int, error) {
	var raw uint64
	var shift uint
	for i, b := range data {
		raw |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			decoded := int64(raw>>1) ^ -(int64(raw) & 1)
			return decoded, i + 1, nil
		}
		shift += 7
		if shift > 63 {
			return 0, 0, fmt.Errorf("avro: varint too long")
		}
	}
	return 0, 0, fmt.Errorf("avro: truncated varint")
}

func decodeAvroString(data []byte) (string, int, error) {
	length, n, err := decodeZigzagVarint(data)
	if err != nil {
		return "", 0, fmt.Errorf("avro: string length: %w", err)
	}
	if length < 0 {
		return "", 0, fmt.Errorf("avro: negative string length %d", length)
	}
	end := n + int(length)
	if end > len(data) {
		return "", 0, fmt.Errorf("avro: string extends past buffer")
	}
	return string(data[n:end]), end, nil
}

// Tag is a decoded {name, value} record.
type Tag struct {
	Name  string
	Value string
}

// decodeAvroTagArray decodes a schema-less Avro-binary encoded array of
// {name: string, value: string} records, the fixed two-field record shape
// bundle item tags use. The decoded record count must equal expectedCount.
func decodeAvroTagArray(data []byte, expectedCount int) ([]Tag, error) {
	var tags []Tag
	offset := 0

	for {
		if offset >= len(data) {
			break
		}
		count, n, err := decodeZigzagVarint(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("avro: block count: %w", err)
		}
		offset += n

		if count == 0 {
			break
		}

		blockCount := count
		if count < 0 {
			blockCount = -count
			// a negative block count is followed by the block's encoded
			// byte size, which we don't need since each record's own
			// length prefixes let us skip it correctly regardless.
			_, n, err := decodeZigzagVarint(data[offset:])
			if err != nil {
				return nil, fmt.Errorf("avro: block size: %w", err)
			}
			offset += n
		}

		for i := int64(0); i < blockCount; i++ {
			name, consumed, err := decodeAvroString(data[offset:])
			if err != nil {
				return nil, fmt.Errorf("avro: tag name: %w", err)
			}
			offset += consumed

			value, consumed, err := decodeAvroString(data[offset:])
			if err != nil {
				return nil, fmt.Errorf("avro: tag value: %w", err)
			}
			offset += consumed

			tags = append(tags, Tag{Name: name, Value: value})
		}
	}

	if len(tags) != expectedCount {
		return nil, fmt.Errorf("%w: declared %d, decoded %d", ErrTagCountMismatch, expectedCount, len(tags))
	}
	return tags, nil
}

// encodeAvroTagArray is the inverse of decodeAvroTagArray, used by tests
// to construct well-formed tag blocks.
func encodeAvroTagArray(tags []Tag) []byte {
	var buf bytes.Buffer
	if len(tags) > 0 {
		buf.Write(encodeZigzagVarint(int64(len(tags))))
		for _, t := range tags {
			buf.Write(encodeAvroString(t.Name))
			buf.Write(encodeAvroString(t.Value))
		}
	}
	buf.Write(encodeZigzagVarint(0))
	return buf.Bytes()
}

func encodeZigzagVarint(v int64) []byte {
	zz := uint64((v << 1) ^ (v >> 63))
	var out []byte
	for {
		b := byte(zz & 0x7f)
		zz >>= 7
		if zz != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func encodeAvroString(s string) []byte {
	var buf bytes.Buffer
	buf.Write(encodeZigzagVarint(int64(len(s))))
	buf.WriteString(s)
	return buf.Bytes()
}
