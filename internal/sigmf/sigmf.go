// Package sigmf builds SigMF (https://github.com/gnuradio/SigMF/)
// v1.0.0 metadata documents for a completed or in-progress recording,
// grounded on original_source/maia-httpd/src/sigmf.rs.
package sigmf

import (
	"encoding/json"
	"time"

	"github.com/maia-sdr/sdrd/internal/fpga"
)

const (
	sigmfVersion  = "1.0.0"
	sigmfRecorder = "sdrd"
)

// DatatypeForMode returns the SigMF core:datatype string for a
// recorder mode, per original_source sigmf.rs's
// `From<RecorderMode> for Datatype`: 8-bit recordings are ci8; 12-bit
// and 16-bit recordings are both stored as ci16_le (12-bit samples are
// expanded to 16 bits before being written, see internal/recorder).
func DatatypeForMode(mode fpga.RecorderMode) string {
	if mode == fpga.RecorderMode8Bit {
		return "ci8"
	}
	return "ci16_le"
}

// Metadata is the mutable SigMF metadata for one recording.
type Metadata struct {
	Datatype    string
	SampleRate  float64
	Description string
	Author      string
	Frequency   float64
	DateTime    time.Time
}

// New builds metadata with the datetime set to the given timestamp.
// internal/recorder passes the zero time here and sets DateTime to each
// recording's start time in Metadata.Start.
func New(datatype string, sampleRate, frequency float64, datetime time.Time) Metadata {
	return Metadata{
		Datatype:   datatype,
		SampleRate: sampleRate,
		Frequency:  frequency,
		DateTime:   datetime,
	}
}

type globalSection struct {
	Author      string  `json:"core:author"`
	Datatype    string  `json:"core:datatype"`
	Description string  `json:"core:description"`
	Recorder    string  `json:"core:recorder"`
	SampleRate  float64 `json:"core:sample_rate"`
	Version     string  `json:"core:version"`
}

type captureEntry struct {
	DateTime    string  `json:"core:datetime"`
	Frequency   float64 `json:"core:frequency"`
	SampleStart int     `json:"core:sample_start"`
}

type document struct {
	Annotations []any          `json:"annotations"`
	Captures    []captureEntry `json:"captures"`
	Global      globalSection  `json:"global"`
}

// ToJSON renders the metadata as SigMF-compliant, alphabetically keyed
// JSON text (matching the upstream serde_json::Value's BTreeMap key
// order), ending in a single trailing newline.
func (m Metadata) ToJSON() ([]byte, error) {
	doc := document{
		Annotations: []any{},
		Captures: []captureEntry{{
			DateTime:    m.DateTime.UTC().Format("2006-01-02T15:04:05.000Z"),
			Frequency:   m.Frequency,
			SampleStart: 0,
		}},
		Global: globalSection{
			Author:      m.Author,
			Datatype:    m.Datatype,
			Description: m.Description,
			Recorder:    sigmfRecorder,
			SampleRate:  m.SampleRate,
			Version:     sigmfVersion,
		},
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
