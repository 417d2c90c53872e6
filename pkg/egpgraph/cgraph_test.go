package egpgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeInt  int32 = 100
	typeBool int32 = 200
)

func buildPrimitive(t *testing.T) *CGraph {
	t.Helper()
	g := NewCGraph(KindPrimitive)
	is := NewInterface(RowI, ClassSrc)
	_, err := is.Extend([]int32{typeInt, typeInt})
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowI, ClassSrc), is))

	ad := NewInterface(RowA, ClassDst)
	_, err = ad.Extend([]int32{typeInt, typeInt})
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowA, ClassDst), ad))

	as := NewInterface(RowA, ClassSrc)
	_, err = as.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowA, ClassSrc), as))

	od := NewInterface(RowO, ClassDst)
	_, err = od.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowO, ClassDst), od))
	return g
}

func TestConnectAndStabilize(t *testing.T) {
	g := buildPrimitive(t)
	assert.False(t, g.IsStable())

	require.NoError(t, g.Connect(RowI, 0, RowA, 0))
	require.NoError(t, g.Connect(RowI, 1, RowA, 1))
	assert.False(t, g.IsStable())

	require.NoError(t, g.Stabilize(true, ExactTypeMatch))
	assert.True(t, g.IsStable())
}

func TestConnectRejectsDisallowedRow(t *testing.T) {
	g := buildPrimitive(t)
	bd := NewInterface(RowB, ClassDst)
	_, err := bd.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowB, ClassDst), bd))

	err = g.Connect(RowI, 0, RowB, 0)
	assert.Error(t, err)
}

func TestConnectReplacesExistingReference(t *testing.T) {
	g := buildPrimitive(t)
	require.NoError(t, g.Connect(RowI, 0, RowA, 0))
	require.NoError(t, g.Connect(RowI, 1, RowA, 0))

	is, _ := g.Get(Key(RowI, ClassSrc))
	ep0, _ := is.Get(0)
	assert.False(t, ep0.Connected())
	ep1, _ := is.Get(1)
	assert.True(t, ep1.Connected())
}

func TestFreezeRequiresStable(t *testing.T) {
	g := buildPrimitive(t)
	_, err := Freeze(g)
	assert.Error(t, err)

	require.NoError(t, g.Stabilize(true, ExactTypeMatch))
	frozen, err := Freeze(g)
	require.NoError(t, err)
	assert.True(t, frozen.IsStable())
	assert.Equal(t, KindPrimitive, frozen.Kind())
}

func TestFrozenHashStableAcrossCalls(t *testing.T) {
	g := buildPrimitive(t)
	require.NoError(t, g.Stabilize(true, ExactTypeMatch))
	frozen, err := Freeze(g)
	require.NoError(t, err)

	h1 := frozen.Hash()
	h2 := frozen.Hash()
	assert.Equal(t, h1, h2)
}

func TestVerifyPasses(t *testing.T) {
	g := buildPrimitive(t)
	require.NoError(t, g.Stabilize(true, ExactTypeMatch))
	frozen, err := Freeze(g)
	require.NoError(t, err)
	assert.NoError(t, Verify(frozen))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindEmpty, Classify(map[Row]bool{RowI: true, RowO: true}))
	assert.Equal(t, KindPrimitive, Classify(map[Row]bool{RowI: true, RowA: true, RowO: true}))
	assert.Equal(t, KindStandard, Classify(map[Row]bool{RowI: true, RowA: true, RowB: true, RowO: true}))
	assert.Equal(t, KindIfThen, Classify(map[Row]bool{RowI: true, RowF: true, RowA: true, RowO: true, RowP: true}))
	assert.Equal(t, KindIfThenElse, Classify(map[Row]bool{RowI: true, RowF: true, RowA: true, RowB: true, RowO: true, RowP: true}))
	assert.Equal(t, KindForLoop, Classify(map[Row]bool{RowI: true, RowL: true, RowA: true, RowO: true, RowP: true}))
	assert.Equal(t, KindWhileLoop, Classify(map[Row]bool{RowI: true, RowW: true, RowA: true, RowO: true, RowP: true}))
}

// TestStabilizeEmptyGraphNeverErrors covers spec §8's boundary test:
// stabilising an EMPTY graph with if_locked=false does nothing, since I has
// no valid destination rows to extend into and there are no other sources.
func TestStabilizeEmptyGraphNeverErrors(t *testing.T) {
	g := NewCGraph(KindEmpty)
	od := NewInterface(RowO, ClassDst)
	_, err := od.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowO, ClassDst), od))

	require.NoError(t, g.Stabilize(false, ExactTypeMatch))

	ep, err := od.Get(0)
	require.NoError(t, err)
	assert.False(t, ep.Connected())
}

// TestStabilizeSkipsIsExtensionWhenRowIIsNotAValidSource covers a
// KindStandard graph's O row, whose valid sources are {A, B}, not I: even
// with if_locked=false, connectOne must not synthesize an Is endpoint for
// O, and must leave O unconnected rather than erroring.
func TestStabilizeSkipsIsExtensionWhenRowIIsNotAValidSource(t *testing.T) {
	g := NewCGraph(KindStandard)
	is := NewInterface(RowI, ClassSrc)
	require.NoError(t, g.Set(Key(RowI, ClassSrc), is))
	od := NewInterface(RowO, ClassDst)
	_, err := od.Append(typeInt)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowO, ClassDst), od))

	require.NoError(t, g.Stabilize(false, ExactTypeMatch))

	ep, err := od.Get(0)
	require.NoError(t, err)
	assert.False(t, ep.Connected())
	assert.Equal(t, 0, is.Len())
}

// TestStabilizeLockedNeverErrorsWithoutCandidates covers if_locked=true with
// no compatible source: the destination is left unconnected, not errored.
func TestStabilizeLockedNeverErrorsWithoutCandidates(t *testing.T) {
	g := NewCGraph(KindPrimitive)
	is := NewInterface(RowI, ClassSrc)
	_, err := is.Extend([]int32{typeInt})
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowI, ClassSrc), is))
	ad := NewInterface(RowA, ClassDst)
	_, err = ad.Append(typeBool)
	require.NoError(t, err)
	require.NoError(t, g.Set(Key(RowA, ClassDst), ad))

	require.NoError(t, g.Stabilize(true, ExactTypeMatch))

	ep, err := ad.Get(0)
	require.NoError(t, err)
	assert.False(t, ep.Connected())
}

func TestJSONRoundTrip(t *testing.T) {
	jcg := JSONCGraph{
		"A": {{SrcRow: "I", SrcIdx: 0, Type: "int"}, {SrcRow: "I", SrcIdx: 1, Type: "int"}},
		"O": {{SrcRow: "A", SrcIdx: 0, Type: "int"}},
	}
	resolve := func(name string) (int32, error) {
		if name == "int" {
			return typeInt, nil
		}
		return 0, assert.AnError
	}
	ifaces, err := ToInterfaces(jcg, resolve)
	require.NoError(t, err)

	g := NewCGraph(KindPrimitive)
	for key, iface := range ifaces {
		require.NoError(t, g.Set(key, iface))
	}
	assert.True(t, g.IsStable())

	frozen, err := Freeze(g)
	require.NoError(t, err)

	namer := func(uid int32) (string, error) {
		if uid == typeInt {
			return "int", nil
		}
		return "", assert.AnError
	}
	out, err := ToJSON(frozen, namer)
	require.NoError(t, err)
	assert.Len(t, out["A"], 2)
	assert.Len(t, out["O"], 1)
}
