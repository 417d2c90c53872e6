package egptype

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
	"github.com/erasmus-gp/egpcore/pkg/egpsign"
)

func genKeys(t *testing.T) (priv, pub []byte) {
	t.Helper()
	pk, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	skDER, err := x509.MarshalPKCS8PrivateKey(sk)
	require.NoError(t, err)
	pkDER, err := x509.MarshalPKIXPublicKey(pk)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: skDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkDER})
}

const testBundle = `{
  "object": {"uid": 0, "depth": 0, "abstract": true, "parents": []},
  "int_fx0": {"uid": {"tt": 1, "io": 0, "fx": 0, "xuid": 1}, "depth": 1, "parents": ["object"]},
  "float_fx0": {"uid": {"tt": 1, "io": 0, "fx": 0, "xuid": 2}, "depth": 1, "parents": ["object"]}
}`

func newTestRegistry(t *testing.T) (*Registry, string, []byte) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(dir, 128, 32, 32, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	bundlePath := filepath.Join(dir, "types_def.json")
	require.NoError(t, os.WriteFile(bundlePath, []byte(testBundle), 0o644))

	priv, pub := genKeys(t)
	_, err = egpsign.SignFile(bundlePath, priv, uuid.New(), egpsign.Ed25519)
	require.NoError(t, err)

	return r, bundlePath, pub
}

func TestRegistryLoadAndLookup(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	obj, err := r.Get("object")
	require.NoError(t, err)
	assert.Equal(t, int32(0), obj.UID())

	intFx0, err := r.Get("int_fx0")
	require.NoError(t, err)
	assert.True(t, intFx0.Depth() == 1)
	assert.Contains(t, intFx0.Parents(), obj.UID())
}

func TestRegistrySkipsReloadOnUnchangedHash(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	_, err := r.Get("object")
	require.NoError(t, err)
}

func TestRegistryNotFound(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	_, err := r.Get("does_not_exist")
	assert.ErrorIs(t, err, egperr.ErrNotFound)
}

func TestRegistryAncestorsAndDescendants(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	intFx0, err := r.Get("int_fx0")
	require.NoError(t, err)

	ancestors, err := r.Ancestors(intFx0)
	require.NoError(t, err)
	assert.Contains(t, ancestors, int32(0))
	assert.Contains(t, ancestors, intFx0.UID())

	obj, err := r.Get("object")
	require.NoError(t, err)
	descendants, err := r.Descendants(obj)
	require.NoError(t, err)
	assert.Contains(t, descendants, intFx0.UID())
}

func TestRegistryVariantSynthesis(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	variant, err := r.Get("int_fx0_fx3")
	require.NoError(t, err)
	assert.True(t, variant.Abstract())
}

func TestRegistryNextXUID(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	first, err := r.NextXUID(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), first)

	second, err := r.NextXUID(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), second)

	third, err := r.NextXUID(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), third)
}

func TestRegistryAllAndChart(t *testing.T) {
	r, bundlePath, pub := newTestRegistry(t)
	require.NoError(t, r.EnsureLoaded(bundlePath, pub))

	defs, err := r.All()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(defs), 3)

	chart, err := r.InheritanceChart(false)
	require.NoError(t, err)
	assert.Contains(t, chart, "flowchart TD")
	assert.Contains(t, chart, `"object"`)

	concreteChart, err := r.InheritanceChart(true)
	require.NoError(t, err)
	assert.NotContains(t, concreteChart, `"object"`)
}

func TestRegistryResetRequiresDevProfile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir, 128, 32, 32, false)
	require.NoError(t, err)
	defer r.Close()

	err = r.Reset()
	assert.ErrorIs(t, err, egperr.ErrInvariantViolation)
}
