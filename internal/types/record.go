package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Category is one of the fixed evaluation dimensions crowdsourced independently
// for every record. The set is closed: a record never carries a score for a
// category outside Categories.
type Category string

const (
	CategorySymmetry Category = "symmetry"
	CategoryBorder   Category = "border"
	CategoryColor    Category = "color"
)

// Categories is the ordered set of required categories. A record is complete
// when every one of these has a stored score.
var Categories = []Category{CategorySymmetry, CategoryBorder, CategoryColor}

// IsValid checks if the category is one of the required set
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Diagnosis is the classification state of a record. It starts at
// DiagnosisPending on creation and is overwritten exactly once when every
// required category has reported.
type Diagnosis string

const (
	// DiagnosisNone means the record has no diagnosis field at all
	// (never observed for records created through this system).
	DiagnosisNone Diagnosis = ""
	// DiagnosisPending is set at creation, before completion.
	DiagnosisPending Diagnosis = "pending"
	// DiagnosisFlagForReview means every required category scored strictly positive.
	DiagnosisFlagForReview Diagnosis = "flag for review"
	// DiagnosisLikelyBenign is every other completed outcome.
	DiagnosisLikelyBenign Diagnosis = "likely benign"
)

// Record is an image submission and its accumulated evaluation state.
type Record struct {
	// ID is the hex SHA-1 of the submitted bytes. Content-addressed: the same
	// bytes always yield the same record.
	ID string `json:"id"`
	// DataRef is the retrieval URL for the stored image bytes. Empty for
	// records created through the data-only ingestion path before a file is
	// attached.
	DataRef string `json:"data_ref,omitempty"`
	// Scores maps category to its accumulated weighted score. A category is
	// absent until its judgment batch arrives.
	Scores map[Category]float64 `json:"scores"`
	// Diagnosis is pending until completion, then final.
	Diagnosis Diagnosis `json:"diagnosis"`
	// GroundTruth is an externally-supplied reference label, stored for later
	// evaluation. Aggregation never reads it.
	GroundTruth string `json:"ground_truth,omitempty"`
}

// NewRecord creates a pending record for the given submitted bytes.
func NewRecord(data []byte) *Record {
	return &Record{
		ID:        FingerprintData(data),
		Scores:    make(map[Category]float64),
		Diagnosis: DiagnosisPending,
	}
}

// FingerprintData derives the content-addressed record id for submitted bytes.
func FingerprintData(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Validate checks the record's invariants
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	for category := range r.Scores {
		if !category.IsValid() {
			return fmt.Errorf("score for unknown category %q (record %s)", category, r.ID)
		}
	}
	return nil
}

// Complete reports whether every required category has a stored score.
// Set membership, not a counter: writing the same category twice does not
// move a record closer to completion.
func (r *Record) Complete() bool {
	for _, category := range Categories {
		if _, ok := r.Scores[category]; !ok {
			return false
		}
	}
	return true
}
