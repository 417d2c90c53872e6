package egptype

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// storedTypeDef is the on-disk (Badger value) encoding of a TypeDef. It
// mirrors TypeDef's fields directly rather than reusing bundleTypeDef,
// since the bundle format deals in parent *names* while the store always
// holds resolved UIDs.
type storedTypeDef struct {
	Name     string       `json:"name"`
	UID      int32        `json:"uid"`
	Depth    int32        `json:"depth"`
	Abstract bool         `json:"abstract"`
	Default  string       `json:"default,omitempty"`
	HasDef   bool         `json:"has_default"`
	Imports  []ImportDef  `json:"imports,omitempty"`
	Parents  []int32      `json:"parents,omitempty"`
	Children []int32      `json:"children,omitempty"`
}

func encodeStoredTypeDef(td *TypeDef) ([]byte, error) {
	def, hasDef := td.Default()
	s := storedTypeDef{
		Name:     td.Name(),
		UID:      td.UID(),
		Depth:    td.Depth(),
		Abstract: td.Abstract(),
		Default:  def,
		HasDef:   hasDef,
		Imports:  td.Imports(),
		Parents:  td.Parents(),
		Children: td.Children(),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("egptype: encoding stored typedef: %w", err)
	}
	return data, nil
}

func decodeStoredTypeDef(data []byte) (*TypeDef, error) {
	var s storedTypeDef
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("egptype: decoding stored typedef: %w", err)
	}
	return NewTypeDef(s.Name, s.UID, s.Depth, s.Abstract, s.Default, s.HasDef, s.Imports, s.Parents, s.Children)
}

// sidecarFileHash hashes a bundle file's raw bytes (distinct from the
// detached-signature file_hash, which egpsign already verifies); it is used
// purely as a cheap key into the sources table to skip re-parsing an
// unchanged bundle (spec §4.3).
func sidecarFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("egptype: opening bundle: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("egptype: hashing bundle: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("egptype: reading bundle: %w", err)
	}
	return data, nil
}
