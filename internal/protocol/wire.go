package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Low-level protobuf wire helpers. Payloads marshal with proto3 semantics:
// zero-valued fields are omitted, unknown fields are skipped on decode.

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendInt64(b, num, int64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	if sub == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

// reader walks the fields of one encoded message.
type reader struct {
	data []byte
}

// next consumes the next field tag. ok is false at end of input.
func (r *reader) next() (num protowire.Number, typ protowire.Type, ok bool, err error) {
	if len(r.data) == 0 {
		return 0, 0, false, nil
	}
	num, typ, n := protowire.ConsumeTag(r.data)
	if n < 0 {
		return 0, 0, false, protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return num, typ, true, nil
}

func (r *reader) varint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return v, nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.varint()
	return int64(v), err
}

func (r *reader) int32() (int32, error) {
	v, err := r.varint()
	return int32(v), err
}

func (r *reader) bool() (bool, error) {
	v, err := r.varint()
	return v != 0, err
}

func (r *reader) string() (string, error) {
	v, n := protowire.ConsumeString(r.data)
	if n < 0 {
		return "", protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(r.data)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return v, nil
}

func (r *reader) double() (float64, error) {
	v, n := protowire.ConsumeFixed64(r.data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return math.Float64frombits(v), nil
}

// skip discards a field of any wire type.
func (r *reader) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, r.data)
	if n < 0 {
		return protowire.ParseError(n)
	}
	r.data = r.data[n:]
	return nil
}
