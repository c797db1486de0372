// Package bundle writes audit bundles: a directory holding one CSV per
// report plus a manifest with per-file SHA-256 digests, optionally
// signed with an Ed25519 key so tampering is detectable later.
package bundle

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/osiriscare/winaudit/internal/export"
	"github.com/osiriscare/winaudit/internal/report"
)

// ManifestFile describes one file in a bundle.
type ManifestFile struct {
	Name   string `json:"name"`
	Report string `json:"report"`
	Rows   int    `json:"rows"`
	SHA256 string `json:"sha256"`
}

// Manifest is the bundle index. The signature covers the manifest
// serialized with an empty signature field.
type Manifest struct {
	RunID     string         `json:"run_id"`
	Host      string         `json:"host"`
	CreatedAt string         `json:"created_at"`
	Files     []ManifestFile `json:"files"`
	PublicKey string         `json:"public_key,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// Writer accumulates reports into a bundle directory.
type Writer struct {
	dir    string
	runID  string
	host   string
	key    ed25519.PrivateKey
	pubHex string
	files  []ManifestFile
}

// NewWriter creates the bundle directory baseDir/runID. A nil key
// produces an unsigned bundle.
func NewWriter(baseDir, runID, host string, key ed25519.PrivateKey, pubHex string) (*Writer, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}
	return &Writer{dir: dir, runID: runID, host: host, key: key, pubHex: pubHex}, nil
}

// Dir returns the bundle directory.
func (w *Writer) Dir() string {
	return w.dir
}

// AddReport writes the report as CSV into the bundle and records its
// digest in the manifest.
func (w *Writer) AddReport(rep *report.Report) error {
	name := rep.Name + ".csv"
	path := filepath.Join(w.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := export.WriteCSV(file, rep); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	digest, err := hashFile(path)
	if err != nil {
		return err
	}

	w.files = append(w.files, ManifestFile{
		Name:   name,
		Report: rep.Name,
		Rows:   rep.Len(),
		SHA256: digest,
	})
	return nil
}

// Finalize writes manifest.json and returns its path.
func (w *Writer) Finalize() (string, error) {
	manifest := Manifest{
		RunID:     w.runID,
		Host:      w.host,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Files:     w.files,
		PublicKey: w.pubHex,
	}

	if w.key != nil {
		unsigned, err := json.Marshal(manifest)
		if err != nil {
			return "", fmt.Errorf("marshal manifest: %w", err)
		}
		manifest.Signature = Sign(w.key, unsigned)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(w.dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Verify reads a bundle directory, recomputes every file digest, and
// checks the manifest signature when one is present.
func Verify(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for _, f := range manifest.Files {
		digest, err := hashFile(filepath.Join(dir, f.Name))
		if err != nil {
			return nil, err
		}
		if digest != f.SHA256 {
			return nil, fmt.Errorf("digest mismatch for %s", f.Name)
		}
	}

	if manifest.Signature != "" {
		if manifest.PublicKey == "" {
			return nil, fmt.Errorf("manifest is signed but has no public key")
		}
		pub, err := hex.DecodeString(manifest.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid public key in manifest")
		}
		sig, err := hex.DecodeString(manifest.Signature)
		if err != nil {
			return nil, fmt.Errorf("invalid signature encoding")
		}

		check := manifest
		check.Signature = ""
		unsigned, err := json.Marshal(check)
		if err != nil {
			return nil, fmt.Errorf("marshal manifest: %w", err)
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), unsigned, sig) {
			return nil, fmt.Errorf("manifest signature verification failed")
		}
	}

	return &manifest, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
