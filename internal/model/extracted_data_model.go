package model

import (
	"encoding/json"
	"time"
)

// ExtractedData is the structured record derived from raw recognized text.
// Every slice is deduplicated in first-occurrence order, except Keywords
// which is frequency-ordered. Stored inside OCRResult.ExtractedData as jsonb.
type ExtractedData struct {
	Emails     []string `json:"emails"`
	Phones     []string `json:"phones"`
	Dates      []string `json:"dates"`
	Names      []string `json:"names"`
	Skills     []string `json:"skills"`
	Education  []string `json:"education"`
	Experience []string `json:"experience"`
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`

	// Set when a caller supplies manual corrections; the pipeline never
	// writes these fields.
	ManuallyCorrected bool       `json:"manually_corrected,omitempty"`
	CorrectedAt       *time.Time `json:"corrected_at,omitempty"`
	CorrectedBy       string     `json:"corrected_by,omitempty"`
}

// NewExtractedData returns a fully-formed empty result so that json encoding
// yields [] for every category instead of null.
func NewExtractedData() *ExtractedData {
	return &ExtractedData{
		Emails:     []string{},
		Phones:     []string{},
		Dates:      []string{},
		Names:      []string{},
		Skills:     []string{},
		Education:  []string{},
		Experience: []string{},
		Keywords:   []string{},
	}
}

// ToJSON serializes for the jsonb column.
func (d *ExtractedData) ToJSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExtractedDataFromJSON parses the jsonb column back into a typed record.
func ExtractedDataFromJSON(s string) (*ExtractedData, error) {
	d := NewExtractedData()
	if s == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(s), d); err != nil {
		return nil, err
	}
	return d, nil
}
