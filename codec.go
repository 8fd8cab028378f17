/*
Copyright (C) 2026  YourDB Contributors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package yourdb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// OpTag identifies the kind of a framed log operation.
type OpTag byte

const (
	OpInsert       OpTag = 0x01
	OpDelete       OpTag = 0x02
	OpSnapshotMark OpTag = 0x03
)

// record payload flags (first byte of an INSERT payload).
const (
	flagCompressed byte = 1 << 0
)

// EncodeFrame builds one log frame: length:u32 | op:u8 | payload, all
// little-endian, where length counts the op byte plus payload.
func EncodeFrame(tag OpTag, payload []byte) []byte {
	buf := make([]byte, 4+1+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(tag)
	copy(buf[5:], payload)
	return buf
}

// EncodeRecordPayload serializes a record (including its version tag) as
// the payload of an INSERT frame. The version tag occupies a fixed
// position (bytes 1-8, after a one-byte flags header) recoverable without
// decoding the JSON body, per the codec's external contract. When
// compress is true the JSON body is lz4-compressed.
func EncodeRecordPayload(rec Record, compress bool) ([]byte, error) {
	body, err := json.Marshal(rec.fields)
	if err != nil {
		return nil, fmt.Errorf("yourdb: encode record: %w", err)
	}
	flags := byte(0)
	if compress {
		var compressed bytes.Buffer
		zw := lz4.NewWriter(&compressed)
		if _, err := zw.Write(body); err != nil {
			return nil, fmt.Errorf("yourdb: lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("yourdb: lz4 compress: %w", err)
		}
		body = compressed.Bytes()
		flags |= flagCompressed
	}
	out := make([]byte, 1+8+len(body))
	out[0] = flags
	binary.LittleEndian.PutUint64(out[1:9], uint64(rec.Version))
	copy(out[9:], body)
	return out, nil
}

// PeekRecordVersion recovers the version tag of an encoded record payload
// without decoding the JSON body.
func PeekRecordVersion(payload []byte) (int, error) {
	if len(payload) < 9 {
		return 0, fmt.Errorf("%w: record payload too short", ErrCorruptFrame)
	}
	return int(binary.LittleEndian.Uint64(payload[1:9])), nil
}

// DecodeRecordPayload is the inverse of EncodeRecordPayload.
func DecodeRecordPayload(payload []byte) (Record, error) {
	if len(payload) < 9 {
		return Record{}, fmt.Errorf("%w: record payload too short", ErrCorruptFrame)
	}
	flags := payload[0]
	version := int(binary.LittleEndian.Uint64(payload[1:9]))
	body := payload[9:]
	if flags&flagCompressed != 0 {
		zr := lz4.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return Record{}, fmt.Errorf("%w: lz4 decompress: %v", ErrCorruptFrame, err)
		}
		body = decompressed
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return Record{}, fmt.Errorf("%w: decode record: %v", ErrCorruptFrame, err)
	}
	return Record{Version: version, fields: fields}, nil
}

// EncodeKeyPayload serializes a primary-key scalar value as the payload of
// a DELETE frame.
func EncodeKeyPayload(pk any) ([]byte, error) {
	body, err := json.Marshal(map[string]any{"pk": pk})
	if err != nil {
		return nil, fmt.Errorf("yourdb: encode key: %w", err)
	}
	return body, nil
}

// DecodeKeyPayload is the inverse of EncodeKeyPayload.
func DecodeKeyPayload(payload []byte) (any, error) {
	var wrap map[string]any
	if err := json.Unmarshal(payload, &wrap); err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", ErrCorruptFrame, err)
	}
	return wrap["pk"], nil
}

// decodeFrameFields coerces a freshly-JSON-decoded field map (numbers as
// float64) into the Go-native representation declared by schema.
func decodeFrameFields(fields map[string]any, schema *Schema) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		kind, ok := schema.Fields[name]
		if !ok {
			// field no longer declared (e.g. dropped by a later schema); keep
			// raw so replay can still surface it to a caller-supplied upgrade.
			out[name] = v
			continue
		}
		coerced, err := coerceKind(v, kind)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}
