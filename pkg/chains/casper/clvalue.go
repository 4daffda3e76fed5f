package casper

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
)

// CLType tags from the Casper serialization standard, limited to the types
// the gateway entry points use.
const (
	clTagU8   = 3
	clTagU32  = 4
	clTagU64  = 5
	clTagU512 = 8
	clTagList = 14
)

// CLValue is one typed argument value in Casper's byte representation.
type CLValue struct {
	typeTag  []byte
	typeJSON interface{}
	bytes    []byte
}

func U32Value(v uint32) CLValue {
	return CLValue{
		typeTag:  []byte{clTagU32},
		typeJSON: "U32",
		bytes:    binary.LittleEndian.AppendUint32(nil, v),
	}
}

func U64Value(v uint64) CLValue {
	return CLValue{
		typeTag:  []byte{clTagU64},
		typeJSON: "U64",
		bytes:    binary.LittleEndian.AppendUint64(nil, v),
	}
}

// U512Value serializes a big integer as a length byte followed by the
// minimal little-endian representation.
func U512Value(v *big.Int) CLValue {
	be := v.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return CLValue{
		typeTag:  []byte{clTagU512},
		typeJSON: "U512",
		bytes:    append([]byte{byte(len(le))}, le...),
	}
}

// ByteListValue serializes a List<U8>: u32 length prefix plus the raw bytes.
func ByteListValue(raw []byte) CLValue {
	return CLValue{
		typeTag:  []byte{clTagList, clTagU8},
		typeJSON: map[string]string{"List": "U8"},
		bytes:    append(binary.LittleEndian.AppendUint32(nil, uint32(len(raw))), raw...),
	}
}

// ToBytes is the value's contribution to the deploy body hash: length
// prefixed value bytes followed by the serialized type.
func (v CLValue) ToBytes() []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(v.bytes)))
	out = append(out, v.bytes...)
	out = append(out, v.typeTag...)
	return out
}

func (v CLValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CLType interface{} `json:"cl_type"`
		Bytes  string      `json:"bytes"`
	}{
		CLType: v.typeJSON,
		Bytes:  hex.EncodeToString(v.bytes),
	})
}

// NamedArg pairs an argument name with its value. Casper's JSON encoding is
// a two element tuple.
type NamedArg struct {
	Name  string
	Value CLValue
}

func (a NamedArg) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.Name, a.Value})
}

func (a NamedArg) ToBytes() []byte {
	out := serializeString(a.Name)
	out = append(out, a.Value.ToBytes()...)
	return out
}

func serializeArgs(args []NamedArg) []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(args)))
	for _, arg := range args {
		out = append(out, arg.ToBytes()...)
	}
	return out
}

func serializeString(s string) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, uint32(len(s))), []byte(s)...)
}

// ---- Parsing helpers for listener-side decoding ----

func parseU32(hexBytes string) (uint32, error) {
	raw, err := hex.DecodeString(hexBytes)
	if err != nil || len(raw) < 4 {
		return 0, fmt.Errorf("invalid U32 bytes %q", hexBytes)
	}
	return binary.LittleEndian.Uint32(raw[:4]), nil
}

func parseU64(hexBytes string) (uint64, error) {
	raw, err := hex.DecodeString(hexBytes)
	if err != nil || len(raw) < 8 {
		return 0, fmt.Errorf("invalid U64 bytes %q", hexBytes)
	}
	return binary.LittleEndian.Uint64(raw[:8]), nil
}

func parseByteList(hexBytes string) ([]byte, error) {
	raw, err := hex.DecodeString(hexBytes)
	if err != nil || len(raw) < 4 {
		return nil, fmt.Errorf("invalid List<U8> bytes %q", hexBytes)
	}
	length := binary.LittleEndian.Uint32(raw[:4])
	if uint32(len(raw)-4) < length {
		return nil, fmt.Errorf("truncated List<U8> bytes %q", hexBytes)
	}
	return raw[4 : 4+length], nil
}
