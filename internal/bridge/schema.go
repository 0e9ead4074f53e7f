package bridge

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"goXBF/internal/xbf"
)

// A schema document describes one record:
//
//	name: order
//	fields:
//	  - name: id
//	    type: u64
//	  - name: tags
//	    type: {vec: string}
//	  - name: customer
//	    type:
//	      record:
//	        name: customer
//	        fields: [{name: email, type: string}]
type schemaDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name string  `yaml:"name"`
	Type typeDoc `yaml:"type"`
}

// typeDoc accepts a kind name or a single-key mapping with "vec" or
// "record".
type typeDoc struct {
	meta xbf.Metadata
}

func (t *typeDoc) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		k, ok := xbf.ParseKind(value.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown type %q", value.Line, value.Value)
		}
		t.meta = k
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: type mapping must have exactly one key, vec or record", value.Line)
		}
		key, body := value.Content[0], value.Content[1]
		switch key.Value {
		case "vec":
			var elem typeDoc
			if err := body.Decode(&elem); err != nil {
				return err
			}
			t.meta = xbf.NewVectorMetadata(elem.meta)
			return nil
		case "record":
			var doc schemaDoc
			if err := body.Decode(&doc); err != nil {
				return err
			}
			m, err := doc.metadata()
			if err != nil {
				return fmt.Errorf("line %d: %w", body.Line, err)
			}
			t.meta = m
			return nil
		}
		return fmt.Errorf("line %d: unknown type key %q", key.Line, key.Value)
	}
	return fmt.Errorf("line %d: type must be a name or a mapping", value.Line)
}

func (d schemaDoc) metadata() (xbf.RecordMetadata, error) {
	if d.Name == "" {
		return xbf.RecordMetadata{}, errors.New("record name is required")
	}
	seen := make(map[string]bool, len(d.Fields))
	fields := make([]xbf.Field, 0, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return xbf.RecordMetadata{}, fmt.Errorf("record %q: field %d has no name", d.Name, i)
		}
		if seen[f.Name] {
			return xbf.RecordMetadata{}, fmt.Errorf("record %q: duplicate field %q", d.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type.meta == nil {
			return xbf.RecordMetadata{}, fmt.Errorf("record %q: field %q has no type", d.Name, f.Name)
		}
		fields = append(fields, xbf.Field{Name: f.Name, Metadata: f.Type.meta})
	}
	return xbf.NewRecordMetadata(d.Name, fields...), nil
}

// ParseSchema reads a YAML schema document. Field names within a record
// must be unique so rows can be written as mappings.
func ParseSchema(data []byte) (xbf.RecordMetadata, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc schemaDoc
	if err := dec.Decode(&doc); err != nil {
		return xbf.RecordMetadata{}, fmt.Errorf("bridge: parse schema: %w", err)
	}
	m, err := doc.metadata()
	if err != nil {
		return xbf.RecordMetadata{}, fmt.Errorf("bridge: parse schema: %w", err)
	}
	return m, nil
}

// Describe renders metadata as native data: a kind name, {vec: ...}, or
// for a record {name, fields}. Nested records appear as {record: ...} so
// the result of describing a RecordMetadata is a valid schema document.
func Describe(m xbf.Metadata) any {
	switch m := m.(type) {
	case xbf.PrimitiveKind:
		return m.String()
	case xbf.VectorMetadata:
		return Object{{Name: "vec", Value: describeType(m.Elem())}}
	case xbf.RecordMetadata:
		fields := make([]any, m.NumFields())
		for i := range fields {
			f := m.Field(i)
			fields[i] = Object{
				{Name: "name", Value: f.Name},
				{Name: "type", Value: describeType(f.Metadata)},
			}
		}
		return Object{
			{Name: "name", Value: m.Name()},
			{Name: "fields", Value: fields},
		}
	}
	return nil
}

func describeType(m xbf.Metadata) any {
	if rm, ok := m.(xbf.RecordMetadata); ok {
		return Object{{Name: "record", Value: Describe(rm)}}
	}
	return Describe(m)
}

// SchemaYAML renders m as a schema document ParseSchema accepts.
func SchemaYAML(m xbf.RecordMetadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, YAML, Describe(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
