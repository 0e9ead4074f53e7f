package bridge

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"

	"goXBF/internal/xbf"
)

const orderSchema = `
name: order
fields:
  - name: id
    type: u64
  - name: note
    type: string
  - name: tags
    type: {vec: string}
  - name: total
    type: i128
  - name: customer
    type:
      record:
        name: customer
        fields:
          - {name: email, type: string}
          - {name: score, type: f32}
`

func orderMetadata() xbf.RecordMetadata {
	customer := xbf.NewRecordMetadata("customer",
		xbf.Field{Name: "email", Metadata: xbf.KindString},
		xbf.Field{Name: "score", Metadata: xbf.KindF32},
	)
	return xbf.NewRecordMetadata("order",
		xbf.Field{Name: "id", Metadata: xbf.KindU64},
		xbf.Field{Name: "note", Metadata: xbf.KindString},
		xbf.Field{Name: "tags", Metadata: xbf.NewVectorMetadata(xbf.KindString)},
		xbf.Field{Name: "total", Metadata: xbf.KindI128},
		xbf.Field{Name: "customer", Metadata: customer},
	)
}

func TestParseSchema(t *testing.T) {
	m, err := ParseSchema([]byte(orderSchema))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(m.Equal(orderMetadata())), qt.Commentf("got %s", m))
}

func TestSchemaYAMLRoundTrip(t *testing.T) {
	data, err := SchemaYAML(orderMetadata())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.StringContains(string(data), "name: order\n"))

	m, err := ParseSchema(data)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(m.Equal(orderMetadata())), qt.Commentf("yaml:\n%s", data))
}

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		err    string
	}{{
		name:   "unknown kind",
		schema: "name: p\nfields: [{name: x, type: u512}]",
		err:    `.*unknown type "u512"`,
	}, {
		name:   "duplicate field",
		schema: "name: p\nfields: [{name: x, type: u8}, {name: x, type: u8}]",
		err:    `.*duplicate field "x"`,
	}, {
		name:   "missing name",
		schema: "fields: [{name: x, type: u8}]",
		err:    `.*record name is required`,
	}, {
		name:   "missing type",
		schema: "name: p\nfields: [{name: x}]",
		err:    `.*field "x" has no type`,
	}, {
		name:   "unknown type key",
		schema: "name: p\nfields: [{name: x, type: {map: u8}}]",
		err:    `.*unknown type key "map"`,
	}, {
		name:   "unknown document key",
		schema: "name: p\nversion: 2\nfields: []",
		err:    `.*field version not found.*`,
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(test.schema))
			qt.Assert(t, qt.ErrorMatches(err, `(?s)bridge: parse schema: `+test.err))
		})
	}
}

func sampleOrder(t *testing.T) xbf.Record {
	t.Helper()
	meta := orderMetadata()
	customerMeta := meta.Field(4).Metadata.(xbf.RecordMetadata)
	customer, err := xbf.NewRecord(customerMeta, xbf.String("a@b.c"), xbf.F32(1.5))
	qt.Assert(t, qt.IsNil(err))
	tags, err := xbf.NewVector(xbf.NewVectorMetadata(xbf.KindString), xbf.String("new"), xbf.String("gift"))
	qt.Assert(t, qt.IsNil(err))
	total, ok := xbf.I128FromBig(big.NewInt(-12345))
	qt.Assert(t, qt.IsTrue(ok))
	rec, err := xbf.NewRecord(meta, xbf.U64(7), xbf.String("hi"), tags, xbf.I128Of(total), customer)
	qt.Assert(t, qt.IsNil(err))
	return rec
}

func TestToNative(t *testing.T) {
	got := ToNative(sampleOrder(t))
	want := Object{
		{Name: "id", Value: uint64(7)},
		{Name: "note", Value: "hi"},
		{Name: "tags", Value: []any{"new", "gift"}},
		{Name: "total", Value: "-12345"},
		{Name: "customer", Value: Object{
			{Name: "email", Value: "a@b.c"},
			{Name: "score", Value: float32(1.5)},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ToNative mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatsRoundTrip(t *testing.T) {
	rec := sampleOrder(t)
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			qt.Assert(t, qt.IsNil(EncodeRecords(&buf, f, []xbf.Record{rec, rec})))

			rows, err := DecodeRecords(buf.Bytes(), f, rec.Metadata())
			qt.Assert(t, qt.IsNil(err))
			qt.Assert(t, qt.HasLen(rows, 2))
			for _, row := range rows {
				qt.Assert(t, qt.IsTrue(row.Equal(rec)), qt.Commentf("got %v", row))
			}
		})
	}
}

func TestEncodeKeepsFieldOrder(t *testing.T) {
	rec := sampleOrder(t)

	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(EncodeValue(&buf, JSON, rec)))
	var compact bytes.Buffer
	qt.Assert(t, qt.IsNil(json.Compact(&compact, buf.Bytes())))
	qt.Assert(t, qt.Equals(compact.String(),
		`{"id":7,"note":"hi","tags":["new","gift"],"total":"-12345","customer":{"email":"a@b.c","score":1.5}}`))

	buf.Reset()
	qt.Assert(t, qt.IsNil(EncodeValue(&buf, YAML, rec)))
	out := buf.String()
	qt.Assert(t, qt.IsTrue(strings.Index(out, "id:") < strings.Index(out, "note:")))
	qt.Assert(t, qt.IsTrue(strings.Index(out, "note:") < strings.Index(out, "customer:")))
}

func TestCBORIsDeterministic(t *testing.T) {
	rec := sampleOrder(t)
	var a, b bytes.Buffer
	qt.Assert(t, qt.IsNil(EncodeValue(&a, CBOR, rec)))
	qt.Assert(t, qt.IsNil(EncodeValue(&b, CBOR, rec)))
	qt.Assert(t, qt.DeepEquals(a.Bytes(), b.Bytes()))
}

func TestFromNativeErrors(t *testing.T) {
	meta := xbf.NewRecordMetadata("p",
		xbf.Field{Name: "x", Metadata: xbf.KindU8},
		xbf.Field{Name: "v", Metadata: xbf.NewVectorMetadata(xbf.KindI8)},
	)
	tests := []struct {
		name string
		in   any
		err  string
	}{
		{"not a mapping", "x", `bridge: value: cannot use string as struct p .*`},
		{"missing field", map[string]any{"x": 1}, `bridge: p: missing field "v"`},
		{"unknown field", map[string]any{"x": 1, "v": nil, "y": 2}, `bridge: p: unknown field "y"`},
		{"overflow", map[string]any{"x": 256, "v": nil}, `bridge: p.x: 256 overflows u8`},
		{"negative unsigned", map[string]any{"x": -1, "v": nil}, `bridge: p.x: -1 overflows u8`},
		{"element overflow", map[string]any{"x": 1, "v": []any{1, -129}}, `bridge: p.v\[1\]: -129 overflows i8`},
		{"wrong element kind", map[string]any{"x": 1, "v": []any{"a"}}, `bridge: p.v\[0\]: invalid integer "a" for i8`},
		{"fraction", map[string]any{"x": 1.5, "v": nil}, `bridge: p.x: non-integral number 1.5 for u8`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := FromNative(meta, test.in)
			qt.Assert(t, qt.ErrorMatches(err, test.err))
		})
	}
}

func TestFromNativeWideIntegers(t *testing.T) {
	v, err := FromNative(xbf.KindU256, "115792089237316195423570985008687907853269984665640564039457584007913129639935")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(v.Equal(xbf.U256Of(xbf.U256{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}))))

	v, err = FromNative(xbf.KindI128, json.Number("-1"))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(v.Equal(xbf.I128Of(xbf.I128{^uint64(0), ^uint64(0)}))))

	_, err = FromNative(xbf.KindU128, "-1")
	qt.Assert(t, qt.ErrorMatches(err, `bridge: value: -1 overflows u128`))
}

func TestFromNativeFloats(t *testing.T) {
	v, err := FromNative(xbf.KindF64, 3)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(v.Equal(xbf.F64(3))))

	v, err = FromNative(xbf.KindF32, json.Number("0.25"))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(v.Equal(xbf.F32(0.25))))

	_, err = FromNative(xbf.KindF32, 1e300)
	qt.Assert(t, qt.ErrorMatches(err, `bridge: value: 1e\+300 overflows f32`))
}

func TestDecodeRecordsSingleDocument(t *testing.T) {
	meta := xbf.NewRecordMetadata("p", xbf.Field{Name: "x", Metadata: xbf.KindI32})
	rows, err := DecodeRecords([]byte("x: -4\n"), YAML, meta)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(rows, 1))
	qt.Assert(t, qt.Equals(rows[0].String(), "p { x: -4 }"))

	_, err = DecodeRecords([]byte("- x: 1\n- y: 2\n"), YAML, meta)
	qt.Assert(t, qt.ErrorMatches(err, `row 1: bridge: p: missing field "x"`))
}

func TestDecodeJSONWithComments(t *testing.T) {
	meta := xbf.NewRecordMetadata("p", xbf.Field{Name: "x", Metadata: xbf.KindI32})
	rows, err := DecodeRecords([]byte(`[
		// first
		{"x": 1},
		{"x": 2}, /* trailing comma */
	]`), JSON, meta)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(rows, 2))
	qt.Assert(t, qt.Equals(rows[1].String(), "p { x: 2 }"))
}

func TestDescribe(t *testing.T) {
	qt.Assert(t, qt.Equals(Describe(xbf.KindBool), any("bool")))
	var buf bytes.Buffer
	qt.Assert(t, qt.IsNil(Encode(&buf, JSON, Describe(xbf.NewVectorMetadata(xbf.NewVectorMetadata(xbf.KindU8))))))
	qt.Assert(t, qt.Equals(buf.String(), "{\n  \"vec\": {\n    \"vec\": \"u8\"\n  }\n}\n"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("cbor")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(f, CBOR))
	_, err = ParseFormat("xml")
	qt.Assert(t, qt.ErrorMatches(err, `bridge: unknown format "xml" .*`))
}
