package egpsign

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

func genEd25519PEM(t *testing.T) (priv []byte, pub []byte) {
	t.Helper()
	pk, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	skDER, err := x509.MarshalPKCS8PrivateKey(sk)
	require.NoError(t, err)
	pkDER, err := x509.MarshalPKIXPublicKey(pk)
	require.NoError(t, err)
	priv = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: skDER})
	pub = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkDER})
	return priv, pub
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello egp"), 0o644))

	priv, pub := genEd25519PEM(t)
	creator := uuid.New()

	sigPath, err := SignFile(file, priv, creator, Ed25519)
	require.NoError(t, err)
	assert.Equal(t, file+".sig", sigPath)

	ok, err := VerifyFileSignature(file, pub, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyTamperedHash(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello egp"), 0o644))

	priv, pub := genEd25519PEM(t)
	sigPath, err := SignFile(file, priv, uuid.New(), Ed25519)
	require.NoError(t, err)

	raw, err := os.ReadFile(sigPath)
	require.NoError(t, err)
	var sidecar Sidecar
	require.NoError(t, json.Unmarshal(raw, &sidecar))
	sidecar.FileHash = "0000000000000000000000000000000000000000000000000000000000000000"
	tampered, err := json.Marshal(sidecar)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sigPath, tampered, 0o644))

	_, err = VerifyFileSignature(file, pub, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, egperr.ErrHashMismatch)
}

func TestVerifyTamperedCreator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello egp"), 0o644))

	priv, pub := genEd25519PEM(t)
	sigPath, err := SignFile(file, priv, uuid.New(), Ed25519)
	require.NoError(t, err)

	raw, err := os.ReadFile(sigPath)
	require.NoError(t, err)
	var sidecar Sidecar
	require.NoError(t, json.Unmarshal(raw, &sidecar))
	sidecar.CreatorUUID = uuid.New().String()
	tampered, err := json.Marshal(sidecar)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sigPath, tampered, 0o644))

	ok, err := VerifyFileSignature(file, pub, "")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, egperr.ErrInvalidSignature)
}

func TestContentSignatureDeterministic(t *testing.T) {
	s1 := ContentSignature([]byte("a"), []byte("bc"))
	s2 := ContentSignature([]byte("a"), []byte("bc"))
	s3 := ContentSignature([]byte("ab"), []byte("c"))
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3)
}

func TestKeyWrapRoundTrip(t *testing.T) {
	priv, _ := genEd25519PEM(t)
	salt := []byte("0123456789abcdef")
	wrapped, err := WrapKey(priv, []byte("correct horse"), salt)
	require.NoError(t, err)
	unwrapped, err := UnlockKey(wrapped, []byte("correct horse"), salt)
	require.NoError(t, err)
	assert.Equal(t, priv, unwrapped)

	_, err = UnlockKey(wrapped, []byte("wrong password"), salt)
	require.Error(t, err)
}
