package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"goXBF/internal/xbf"
)

// Format names a text or binary rendering of native data.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	CBOR Format = "cbor"
)

// Formats lists every supported Format.
var Formats = []Format{YAML, JSON, CBOR}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("bridge: unknown format %q (want yaml, json or cbor)", s)
}

// cborEnc uses Core Deterministic Encoding (RFC 8949 §4.2) so the same rows
// always produce the same bytes.
var cborEnc cbor.EncMode

var cborDec cbor.DecMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bridge: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("bridge: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalJSON writes members in order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", m.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML builds a mapping node with members in order.
func (o Object) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, m := range o {
		var key, val yaml.Node
		if err := key.Encode(m.Name); err != nil {
			return nil, err
		}
		if err := val.Encode(m.Value); err != nil {
			return nil, fmt.Errorf("field %q: %w", m.Name, err)
		}
		node.Content = append(node.Content, &key, &val)
	}
	return node, nil
}

// MarshalCBOR encodes o as a CBOR map. Deterministic encoding sorts the
// keys, so member order is not preserved.
func (o Object) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(o.Map())
}

// Encode writes native data x to w in format f.
func Encode(w io.Writer, f Format, x any) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(x); err != nil {
			return fmt.Errorf("bridge: encode yaml: %w", err)
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(x); err != nil {
			return fmt.Errorf("bridge: encode json: %w", err)
		}
		return nil
	case CBOR:
		if err := cborEnc.NewEncoder(w).Encode(x); err != nil {
			return fmt.Errorf("bridge: encode cbor: %w", err)
		}
		return nil
	}
	return fmt.Errorf("bridge: unknown format %q", f)
}

// EncodeValue writes v to w in format f.
func EncodeValue(w io.Writer, f Format, v xbf.Value) error {
	return Encode(w, f, ToNative(v))
}

// EncodeRecords writes rows as a single sequence.
func EncodeRecords(w io.Writer, f Format, rows []xbf.Record) error {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = ToNative(r)
	}
	return Encode(w, f, out)
}

// Decode parses data in format f into native data.
func Decode(data []byte, f Format) (any, error) {
	var x any
	switch f {
	case YAML:
		if err := yaml.Unmarshal(data, &x); err != nil {
			return nil, fmt.Errorf("bridge: decode yaml: %w", err)
		}
	case JSON:
		// Comments and trailing commas are allowed in JSON input.
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.UseNumber()
		if err := dec.Decode(&x); err != nil {
			return nil, fmt.Errorf("bridge: decode json: %w", err)
		}
	case CBOR:
		if err := cborDec.Unmarshal(data, &x); err != nil {
			return nil, fmt.Errorf("bridge: decode cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("bridge: unknown format %q", f)
	}
	return x, nil
}

// DecodeRecords parses rows of shape meta. The document is either a single
// record or a sequence of records.
func DecodeRecords(data []byte, f Format, meta xbf.RecordMetadata) ([]xbf.Record, error) {
	x, err := Decode(data, f)
	if err != nil {
		return nil, err
	}
	items, ok := x.([]any)
	if !ok {
		if x == nil {
			return nil, nil
		}
		items = []any{x}
	}
	rows := make([]xbf.Record, 0, len(items))
	for i, item := range items {
		v, err := FromNative(meta, item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, v.(xbf.Record))
	}
	return rows, nil
}
