// Package model defines the core data types shared across the extraction
// and load pipeline.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// HashFields is the ordered tuple of business fields covered by the
// content hash. Order matters: changing it invalidates every stored hash.
var HashFields = []string{
	"radicado",
	"fecha_radicacion",
	"tipo_tramite",
	"numero_reclamo",
	"nic",
}

// ExtractedRecord is one PQR row captured from a portal detail view,
// together with the artifacts generated for it. Immutable once written
// to disk.
type ExtractedRecord struct {
	// Radicado is the externally issued case number (business key).
	// May be a synthetic PQR_<n>_<ts> identifier when the portal did
	// not expose one.
	Radicado string `json:"radicado"`

	// RecordNumber is the 1-based ordinal of the record within the run.
	RecordNumber int `json:"record_number"`

	// Fields is the flat field-name -> value map captured from the
	// detail view.
	Fields map[string]string `json:"fields"`

	// Artifact paths; empty when the corresponding step failed or the
	// record had no attachment.
	DocumentPath   string `json:"document_path,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	SnapshotPath   string `json:"snapshot_path,omitempty"`

	SourceURL   string    `json:"source_url"`
	Company     string    `json:"company"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Field returns the named field value, or "" when absent. Empty string
// is the canonical serialization for missing fields so the content hash
// stays stable.
func (r *ExtractedRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// ContentHash computes the stable sha256 hash over the ordered business
// field tuple. The radicado is always included first so two records with
// identical detail fields but different case numbers hash differently.
func (r *ExtractedRecord) ContentHash() string {
	parts := make([]string, 0, len(HashFields)+1)
	parts = append(parts, r.Radicado)
	for _, f := range HashFields {
		if f == "radicado" {
			continue
		}
		parts = append(parts, r.Field(f))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// HasArtifact reports whether at least one extraction sub-step produced
// an artifact, which is the "useful record" criterion for run stats.
func (r *ExtractedRecord) HasArtifact() bool {
	return r.DocumentPath != "" || r.AttachmentPath != "" || r.SnapshotPath != ""
}
