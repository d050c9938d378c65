package memcache

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Values are carried over a text protocol that is not binary-safe: byte
// sequences outside the printable range can be corrupted in transit. Composite
// values are therefore serialized with msgpack and then base64-encoded, so the
// stored payload only ever contains the base64 ASCII alphabet. Numeric values
// skip both steps and travel as their printable decimal representation, which
// keeps them compatible with server-side incr/decr.

var (
	floatLiteral = regexp.MustCompile(`^-?\d+\.\d+$`)
	intLiteral   = regexp.MustCompile(`^-?\d+$`)
)

// encodeValue converts a value into its wire representation.
func encodeValue(value any, raw bool) ([]byte, error) {
	if raw {
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return fmt.Appendf(nil, "%v", v), nil
		}
	}

	if s, ok := numericString(value); ok {
		return []byte(s), nil
	}

	packed, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("memcache: encode value: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(packed)))
	base64.StdEncoding.Encode(encoded, packed)
	return encoded, nil
}

// decodeValue reverses encodeValue. The writer of a value is unknown: it may
// be this client, a bare incr/decr counter, or a foreign client that never
// encodes. Decoding is therefore speculative: a failed structured decode is
// not an error but a branch into literal coercion.
func decodeValue(data []byte, raw bool) (any, error) {
	if data == nil {
		return nil, nil
	}
	if raw {
		return data, nil
	}

	packed := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(packed, data)
	if err == nil {
		if value, err := unpack(packed[:n]); err == nil {
			return value, nil
		}
	}

	return coerceLiteral(string(data)), nil
}

// unpack deserializes a msgpack payload into untyped Go values. Loose
// interface decoding keeps the numeric types stable across a round trip
// (int64 for signed, uint64 for unsigned, float64 for floats).
func unpack(packed []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(packed))
	dec.UseLooseInterfaceDecoding(true)

	value, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}

	// Trailing bytes mean the payload was not produced by encodeValue.
	if _, err := dec.DecodeInterface(); err == nil {
		return nil, fmt.Errorf("memcache: trailing bytes after msgpack value")
	}
	return value, nil
}

// coerceLiteral parses values that were never codec-encoded. Counters written
// via incr/decr are stored as plain digit strings, so every read path must
// tolerate them.
func coerceLiteral(s string) any {
	switch {
	case floatLiteral.MatchString(s):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case intLiteral.MatchString(s):
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	return s
}

// numericString renders numeric values as their decimal representation.
func numericString(value any) (string, bool) {
	switch v := value.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return floatString(float64(v), 32), true
	case float64:
		return floatString(v, 64), true
	}
	return "", false
}

// floatString keeps a decimal point even for integral floats, so the value
// coerces back to a float on read instead of collapsing to an integer.
func floatString(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
