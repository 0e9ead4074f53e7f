package schemaid

import (
	"testing"

	"github.com/go-quicktest/qt"

	"goXBF/internal/xbf"
)

func TestOfIsStructural(t *testing.T) {
	a := xbf.NewRecordMetadata("p",
		xbf.Field{Name: "x", Metadata: xbf.KindI32},
		xbf.Field{Name: "tags", Metadata: xbf.NewVectorMetadata(xbf.KindString)},
	)
	b := xbf.NewRecordMetadata("p",
		xbf.Field{Name: "x", Metadata: xbf.KindI32},
		xbf.Field{Name: "tags", Metadata: xbf.NewVectorMetadata(xbf.KindString)},
	)
	idA, err := Of(a)
	qt.Assert(t, qt.IsNil(err))
	idB, err := Of(b)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(idA, idB))
	qt.Assert(t, qt.IsFalse(idA.IsZero()))

	c := xbf.NewRecordMetadata("p", xbf.Field{Name: "x", Metadata: xbf.KindI64})
	idC, err := Of(c)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Not(qt.Equals(idA, idC)))
}

func TestSumMatchesOf(t *testing.T) {
	m := xbf.NewVectorMetadata(xbf.KindU8)
	data, err := xbf.MarshalMetadata(m)
	qt.Assert(t, qt.IsNil(err))
	id, err := Of(m)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(Sum(data), id))
}

func TestOfNil(t *testing.T) {
	_, err := Of(nil)
	qt.Assert(t, qt.ErrorIs(err, xbf.ErrNil))
}

func TestStringParse(t *testing.T) {
	id := Sum([]byte{byte(xbf.KindString)})
	s := id.String()
	qt.Assert(t, qt.HasLen(s, 64))
	qt.Assert(t, qt.Equals(id.Short(), s[:12]))

	back, err := Parse(s)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(back, id))

	var text ID
	qt.Assert(t, qt.IsNil(text.UnmarshalText([]byte(s))))
	qt.Assert(t, qt.Equals(text, id))

	_, err = Parse("abc")
	qt.Assert(t, qt.ErrorMatches(err, `schemaid: invalid length 3, want 64 hex digits`))
	_, err = Parse(s[:62] + "zz")
	qt.Assert(t, qt.IsNotNil(err))
}
