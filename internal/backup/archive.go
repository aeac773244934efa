// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
)

// archiveFormatVersion is bumped when the archive layout changes shape.
const archiveFormatVersion = 1

// checksumDomain prefixes the canonical byte stream so checksums from other
// formats can never collide with ours.
const checksumDomain = "corvia-backup-v1\n"

// manifest is the first tar entry of every archive. It describes the
// payload and carries the canonical checksum so a reader can verify the
// decoded contents without trusting the catalog.
type manifest struct {
	FormatVersion int            `json:"format_version"`
	TakenAt       time.Time      `json:"taken_at"`
	SchemaVersion string         `json:"schema_version"`
	EntityOrder   []string       `json:"entity_order"`
	RecordCounts  map[string]int `json:"record_counts"`
	Checksum      string         `json:"checksum"`
}

// archiveExt returns the file extension for the configured codec.
func archiveExt(comp CompressionConfig) string {
	if comp.Algorithm == CompressionZstd {
		return ".tar.zst"
	}
	return ".tar.gz"
}

// canonicalChecksum hashes the canonical representation of an export: the
// domain prefix, then each entity name and its encoded records in entity
// order. Records are encoded sorted by ID (Store.Export guarantees the
// sort), so two exports of identical data always hash identically no
// matter when or on which host they were taken. Compression and the
// archive container never participate in the hash.
func canonicalChecksum(order []string, encoded map[string][]byte) string {
	h := sha256.New()
	h.Write([]byte(checksumDomain))
	for _, entity := range order {
		h.Write([]byte(entity))
		h.Write([]byte{'\n'})
		h.Write(encoded[entity])
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// encodeEntities marshals every entity's record list once; the same bytes
// feed both the checksum and the tar entries.
func encodeEntities(export *dataset.Export) (map[string][]byte, error) {
	encoded := make(map[string][]byte, len(export.Entities))
	for _, entity := range export.EntityOrder {
		data, err := json.Marshal(export.Entities[entity])
		if err != nil {
			return nil, &SerializationError{Reason: fmt.Sprintf("encode entity %s", entity), Err: err}
		}
		encoded[entity] = data
	}
	return encoded, nil
}

// writeArchive writes an export to path as a compressed tar archive and
// returns the canonical checksum. The file is synced before return so a
// following rename publishes durable bytes.
func writeArchive(export *dataset.Export, path string, comp CompressionConfig) (string, error) {
	encoded, err := encodeEntities(export)
	if err != nil {
		return "", err
	}
	checksum := canonicalChecksum(export.EntityOrder, encoded)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", &IOError{Op: "create archive", Path: path, Err: err}
	}
	defer f.Close()

	var compressor io.WriteCloser
	switch comp.Algorithm {
	case CompressionZstd:
		compressor, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevel(comp.Level)))
		if err != nil {
			return "", &IOError{Op: "init zstd", Path: path, Err: err}
		}
	default:
		compressor, err = gzip.NewWriterLevel(f, comp.Level)
		if err != nil {
			return "", &IOError{Op: "init gzip", Path: path, Err: err}
		}
	}

	tw := tar.NewWriter(compressor)

	m := manifest{
		FormatVersion: archiveFormatVersion,
		TakenAt:       export.TakenAt,
		SchemaVersion: export.SchemaVersion,
		EntityOrder:   export.EntityOrder,
		RecordCounts:  export.RecordCounts(),
		Checksum:      checksum,
	}
	manifestData, err := json.Marshal(m)
	if err != nil {
		return "", &SerializationError{Reason: "encode manifest", Err: err}
	}
	if err := writeTarEntry(tw, "manifest.json", manifestData); err != nil {
		return "", &IOError{Op: "write manifest", Path: path, Err: err}
	}
	for _, entity := range export.EntityOrder {
		if err := writeTarEntry(tw, "entities/"+entity+".json", encoded[entity]); err != nil {
			return "", &IOError{Op: "write entity " + entity, Path: path, Err: err}
		}
	}

	if err := tw.Close(); err != nil {
		return "", &IOError{Op: "finalize tar", Path: path, Err: err}
	}
	if err := compressor.Close(); err != nil {
		return "", &IOError{Op: "finalize compression", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return "", &IOError{Op: "sync archive", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &IOError{Op: "close archive", Path: path, Err: err}
	}
	return checksum, nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o600,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// readArchive decodes an archive back into an export and recomputes the
// canonical checksum from the stored bytes. The caller compares the result
// against the catalog's recorded checksum before touching the live store.
func readArchive(path string) (*dataset.Export, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &IOError{Op: "open archive", Path: path, Err: err}
	}
	defer f.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, "", &SerializationError{Reason: "zstd stream", Err: err}
		}
		defer zr.Close()
		reader = zr
	default:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, "", &SerializationError{Reason: "gzip stream", Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)

	var m *manifest
	raw := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", &SerializationError{Reason: "tar stream", Err: err}
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, "", &SerializationError{Reason: "read entry " + hdr.Name, Err: err}
		}
		switch {
		case hdr.Name == "manifest.json":
			m = &manifest{}
			if err := json.Unmarshal(data, m); err != nil {
				return nil, "", &SerializationError{Reason: "decode manifest", Err: err}
			}
		case strings.HasPrefix(hdr.Name, "entities/") && strings.HasSuffix(hdr.Name, ".json"):
			entity := strings.TrimSuffix(strings.TrimPrefix(hdr.Name, "entities/"), ".json")
			raw[entity] = data
		}
	}
	if m == nil {
		return nil, "", &SerializationError{Reason: "manifest missing"}
	}
	if m.FormatVersion != archiveFormatVersion {
		return nil, "", &SerializationError{
			Reason: fmt.Sprintf("unsupported format version %d", m.FormatVersion),
		}
	}

	export := &dataset.Export{
		TakenAt:       m.TakenAt,
		SchemaVersion: m.SchemaVersion,
		EntityOrder:   m.EntityOrder,
		Entities:      make(map[string][]dataset.Record, len(m.EntityOrder)),
	}
	for _, entity := range m.EntityOrder {
		data, ok := raw[entity]
		if !ok {
			return nil, "", &SerializationError{Reason: "entity payload missing: " + entity}
		}
		var records []dataset.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, "", &SerializationError{Reason: "decode entity " + entity, Err: err}
		}
		export.Entities[entity] = records
	}

	// Hash the stored bytes, not a re-encoding, so verification is immune
	// to marshaling differences across versions.
	computed := canonicalChecksum(m.EntityOrder, raw)
	if computed != m.Checksum {
		return nil, "", &SerializationError{
			Reason: fmt.Sprintf("manifest checksum %.12s does not match payload %.12s", m.Checksum, computed),
		}
	}
	return export, computed, nil
}
