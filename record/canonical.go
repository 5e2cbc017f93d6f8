package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EncodeList encodes a scalar collection as a JSON array for storage.
// Strings are written byte-exact and must be valid UTF-8, which JSON
// cannot carry otherwise; blobs are not allowed in collections.
func EncodeList(l List) ([]byte, error) {
	return marshalArray(l, false)
}

// DecodeList is the inverse of EncodeList. Integral numbers decode as Int,
// everything else numeric as Real.
func DecodeList(data []byte) (List, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	out := make(List, len(raw))
	for i, elem := range raw {
		switch val := elem.(type) {
		case nil:
			out[i] = Null{}
		case string:
			out[i] = Text(val)
		case bool:
			if val {
				out[i] = Int(1)
			} else {
				out[i] = Int(0)
			}
		case json.Number:
			if n, err := val.Int64(); err == nil {
				out[i] = Int(n)
				continue
			}
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("decode list[%d]: %w", i, err)
			}
			out[i] = Real(f)
		default:
			return nil, fmt.Errorf("decode list[%d]: nested %T not allowed", i, elem)
		}
	}
	return out, nil
}

// Canonical domains for Digest. Version suffix enables future algorithm migration.
const (
	DomainIndex = "stow/index/v1"
)

// Digest computes SHA-256 with domain separation over the canonical
// encoding of parts. Format: SHA256(domain + 0x00 + canonical(parts)).
func Digest(domain string, parts ...Value) (string, error) {
	data, err := marshalArray(List(parts), true)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator prevents domain/data ambiguity
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// marshalArray writes a JSON array without HTML escaping. In canonical
// mode strings are NFC normalized and blobs are base64 encoded.
func marshalArray(l List, canonical bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalScalar(elem, canonical)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalScalar(v Value, canonical bool) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Real:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite real %v", f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			// Keep reals distinguishable from integers after a round trip.
			s += ".0"
		}
		return []byte(s), nil
	case Text:
		s := string(val)
		if canonical {
			s = norm.NFC.String(s)
		}
		return marshalString(s)
	case Blob:
		if !canonical {
			return nil, fmt.Errorf("blob not allowed in a stored collection")
		}
		return marshalString(base64.StdEncoding.EncodeToString(val))
	case Ref:
		return marshalScalar(val.ID, canonical)
	case List:
		if !canonical {
			return nil, fmt.Errorf("nested list not allowed in a stored collection")
		}
		return marshalArray(val, canonical)
	default:
		return nil, fmt.Errorf("%T not allowed in a collection", v)
	}
}

func marshalString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("string %q is not valid UTF-8", s)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // <, >, & must NOT be escaped
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// json.Encoder adds trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
