package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/maia-sdr/sdrd/internal/apperror"
	"github.com/maia-sdr/sdrd/internal/recorder"
)

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type recorderWire struct {
	Mode               string  `json:"mode"`
	State              string  `json:"state"`
	PrependTimestamp   bool    `json:"prepend_timestamp"`
	MaximumDurationSec float64 `json:"maximum_duration_seconds"`
	RecordingID        string  `json:"recording_id,omitempty"`
}

func (h *handlers) recorderJSON() recorderWire {
	snap := h.deps.Recorder.Snapshot()
	wire := recorderWire{
		Mode:               recorderModeString(snap.Mode),
		State:              recorderStateString(h.deps.Recorder.State()),
		PrependTimestamp:   h.deps.Recorder.PrependTimestampEnabled(),
		MaximumDurationSec: snap.MaximumDuration.Seconds(),
	}
	if snap.RecordingID != uuid.Nil {
		wire.RecordingID = snap.RecordingID.String()
	}
	return wire
}

// getRecorder reports the IQ recorder's status (spec.md §6
// "/api/recorder", grounded on
// original_source/maia-httpd/src/httpd/recording.rs's get_recorder).
func (h *handlers) getRecorder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.recorderJSON())
}

type patchRecorderWire struct {
	Mode                   *string  `json:"mode,omitempty"`
	PrependTimestamp       *bool    `json:"prepend_timestamp,omitempty"`
	MaximumDurationSeconds *float64 `json:"maximum_duration_seconds,omitempty"`
	StateChange            *string  `json:"state_change,omitempty"` // "start" | "stop"
}

// patchRecorder mirrors recorder_patch: mode/prepend/duration update
// unconditionally, state_change only fires a transition when it
// matches the recorder's current state (start only from stopped, stop
// only from running).
func (h *handlers) patchRecorder(w http.ResponseWriter, r *http.Request) {
	var patch patchRecorderWire
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}

	if patch.Mode != nil {
		mode, ok := parseRecorderModeString(*patch.Mode)
		if !ok {
			writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: "invalid recorder mode"})
			return
		}
		if err := h.deps.Core.SetRecorderMode(mode); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.PrependTimestamp != nil {
		h.deps.Recorder.SetPrependTimestamp(*patch.PrependTimestamp)
	}
	if patch.MaximumDurationSeconds != nil {
		d := *patch.MaximumDurationSeconds
		if d <= 0 {
			h.deps.Recorder.SetMaximumDuration(0)
		} else {
			h.deps.Recorder.SetMaximumDuration(secondsToDuration(d))
		}
	}

	if patch.StateChange != nil {
		state := h.deps.Recorder.State()
		switch {
		case *patch.StateChange == "start" && state == recorder.StateStopped:
			if err := h.deps.Core.RecorderStart(); err != nil {
				writeError(w, err)
				return
			}
			if err := h.deps.Recorder.Start(r.Context(), h.recorderDeps()); err != nil {
				writeError(w, err)
				return
			}
		case *patch.StateChange == "stop" && state == recorder.StateRunning:
			if err := h.deps.Core.RecorderStop(); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, h.recorderJSON())
}

func (h *handlers) recorderDeps() recorder.Deps {
	return recorder.Deps{
		SampleRate: func(ctx context.Context) (float64, error) {
			v, err := h.deps.Transceiver.SamplingFrequency(ctx)
			return float64(v), err
		},
		RXFrequency: func(ctx context.Context) (float64, error) {
			v, err := h.deps.Transceiver.RXLOFrequency(ctx)
			return float64(v), err
		},
	}
}

type recordingMetadataWire struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

func (h *handlers) recordingMetadataJSON() recordingMetadataWire {
	return recordingMetadataWire{
		Filename:    h.deps.Recorder.Filename(),
		Description: h.deps.Recorder.Description(),
		Author:      h.deps.Recorder.Author(),
	}
}

// getRecordingMetadata returns filename/description/author.
func (h *handlers) getRecordingMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.recordingMetadataJSON())
}

// putRecordingMetadata replaces all three fields.
func (h *handlers) putRecordingMetadata(w http.ResponseWriter, r *http.Request) {
	var put recordingMetadataWire
	if err := decodeJSON(r, &put); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}
	h.deps.Recorder.SetFilename(put.Filename)
	h.deps.Recorder.SetDescription(put.Description)
	h.deps.Recorder.SetAuthor(put.Author)
	writeJSON(w, http.StatusOK, h.recordingMetadataJSON())
}

// patchRecordingMetadata updates whichever fields are present.
func (h *handlers) patchRecordingMetadata(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Filename    *string `json:"filename,omitempty"`
		Description *string `json:"description,omitempty"`
		Author      *string `json:"author,omitempty"`
	}
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}
	if patch.Filename != nil {
		h.deps.Recorder.SetFilename(*patch.Filename)
	}
	if patch.Description != nil {
		h.deps.Recorder.SetDescription(*patch.Description)
	}
	if patch.Author != nil {
		h.deps.Recorder.SetAuthor(*patch.Author)
	}
	writeJSON(w, http.StatusOK, h.recordingMetadataJSON())
}

// getRecording streams the current recording buffer as a SigMF tar
// archive (spec.md §4.H, §6 "/recording").
func (h *handlers) getRecording(w http.ResponseWriter, r *http.Request) {
	snapshot := h.deps.Recorder.Snapshot()
	stream, size, err := recorder.Assemble(snapshot, h.deps.Core.RecorderNextAddress())
	if err != nil {
		if apperror.Is(err, apperror.KindConfigOutOfRange) {
			writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Length", strconv.Itoa(size))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.sigmf.tar"`, snapshot.Filename))
	w.WriteHeader(http.StatusOK)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
		}
		if rerr != nil {
			return
		}
	}
}
