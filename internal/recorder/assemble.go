package recorder

import (
	"io"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

// Assemble opens the mmap'd recorder buffer for the current snapshot
// and recorder_next_address, and returns a lazy tar stream plus its
// exact total length, ready to be written as an HTTP response body
// (spec.md §4.H). The mmap is released once the stream is fully read
// or aborted early.
func Assemble(snapshot Snapshot, recorderNextAddress uint64) (io.ReadCloser, int, error) {
	var maxItems *int
	if snapshot.MaximumDuration > 0 {
		n := int(snapshot.MaximumDuration.Seconds() * snapshot.SigMF.SampleRate)
		maxItems = &n
	}

	buf, err := OpenBuffer(snapshot.Mode, recorderNextAddress, maxItems)
	if err != nil {
		return nil, 0, err
	}

	metaJSON, err := snapshot.SigMF.ToJSON()
	if err != nil {
		buf.Close()
		return nil, 0, apperror.Wrap(apperror.KindTransientIO, "render sigmf metadata", err)
	}

	data := &closeAfterRead{Reader: buf, closer: buf}
	stream, size, err := Stream(snapshot.Filename, metaJSON, data, buf.OutputSize(), snapshot.SigMF.DateTime)
	if err != nil {
		buf.Close()
		return nil, 0, err
	}
	return stream, size, nil
}
