package egpgc

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erasmus-gp/egpcore/pkg/egpgraph"
)

const (
	typeInt int32 = 1
)

func namer(uid int32) (string, error) {
	if uid == typeInt {
		return "int", nil
	}
	return "", assert.AnError
}

func buildCodonGraph(t *testing.T) *egpgraph.FrozenCGraph {
	t.Helper()
	g := egpgraph.NewCGraph(egpgraph.KindPrimitive)

	is := egpgraph.NewInterface(egpgraph.RowI, egpgraph.ClassSrc)
	_, err := is.Extend([]int32{typeInt, typeInt})
	require.NoError(t, err)
	require.NoError(t, g.Set(egpgraph.Key(egpgraph.RowI, egpgraph.ClassSrc), is))

	ad := egpgraph.NewInterface(egpgraph.RowA, egpgraph.ClassDst)
	_, err = ad.Extend([]int32{typeInt, typeInt})
	require.NoError(t, err)
	require.NoError(t, g.Set(egpgraph.Key(egpgraph.RowA, egpgraph.ClassDst), ad))

	as := egpgraph.NewInterface(egpgraph.RowA, egpgraph.ClassSrc)
	_, err = as.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(egpgraph.Key(egpgraph.RowA, egpgraph.ClassSrc), as))

	od := egpgraph.NewInterface(egpgraph.RowO, egpgraph.ClassDst)
	_, err = od.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(egpgraph.Key(egpgraph.RowO, egpgraph.ClassDst), od))

	require.NoError(t, g.Connect(egpgraph.RowI, 0, egpgraph.RowA, 0))
	require.NoError(t, g.Connect(egpgraph.RowI, 1, egpgraph.RowA, 1))
	require.NoError(t, g.Stabilize(true, egpgraph.ExactTypeMatch))
	require.True(t, g.IsStable())

	frozen, err := egpgraph.Freeze(g)
	require.NoError(t, err)
	return frozen
}

func baseFields(t *testing.T) Fields {
	t.Helper()
	return Fields{
		CGraph: buildCodonGraph(t),
		Properties: Properties{
			GCType:        Codon,
			GraphType:     egpgraph.KindPrimitive,
			Deterministic: true,
		},
		Created:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Updated:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Creator:    uuid.New(),
		CodeDepth:  1,
		Generation: 1,
		NumCodes:   1,
		NumCodons:  1,
	}
}

func TestNewCodonSucceeds(t *testing.T) {
	gc, err := New(baseFields(t), namer)
	require.NoError(t, err)
	assert.True(t, gc.IsCodon())
	assert.NoError(t, gc.Verify())
	assert.NotEqual(t, Signature{}, gc.Signature())
}

func TestNewSignatureDeterministic(t *testing.T) {
	f := baseFields(t)
	gc1, err := New(f, namer)
	require.NoError(t, err)

	f2 := baseFields(t)
	f2.Created = f.Created
	f2.Creator = f.Creator
	gc2, err := New(f2, namer)
	require.NoError(t, err)

	assert.Equal(t, gc1.Signature(), gc2.Signature())
}

func TestNewRejectsCodonWithGCA(t *testing.T) {
	f := baseFields(t)
	sig := Signature{1, 2, 3}
	f.GCA = &sig
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsCodonWithNonPrimitiveGraphType(t *testing.T) {
	f := baseFields(t)
	f.Properties.GraphType = egpgraph.KindStandard
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsDepthGreaterThanOneWithoutGCA(t *testing.T) {
	f := baseFields(t)
	f.Properties.GCType = Composite
	f.CodeDepth = 2
	f.NumCodes = 2
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsFutureCreated(t *testing.T) {
	f := baseFields(t)
	f.Created = time.Now().UTC().Add(24 * time.Hour)
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsCreatedBeforeEpoch(t *testing.T) {
	f := baseFields(t)
	f.Created = EGPEpoch.Add(-time.Hour)
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsLostDescendantsAboveReferenceCount(t *testing.T) {
	f := baseFields(t)
	f.LostDescendants = 2
	f.ReferenceCount = 1
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsUpdatedBeforeCreated(t *testing.T) {
	f := baseFields(t)
	f.Updated = f.Created.Add(-time.Hour)
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsFutureUpdated(t *testing.T) {
	f := baseFields(t)
	f.Updated = time.Now().UTC().Add(24 * time.Hour)
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsUpdatedBeforeEpoch(t *testing.T) {
	f := baseFields(t)
	f.Created = EGPEpoch
	f.Updated = EGPEpoch.Add(-time.Hour)
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestNewRejectsNilCreator(t *testing.T) {
	f := baseFields(t)
	f.Creator = uuid.Nil
	_, err := New(f, namer)
	assert.Error(t, err)
}

func TestToJSONRoundTripsSignature(t *testing.T) {
	gc, err := New(baseFields(t), namer)
	require.NoError(t, err)

	data, err := gc.ToJSON(namer)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"signature\"")
	assert.Contains(t, string(data), "\"code_depth\":1")
}
