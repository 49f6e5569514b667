package recorder

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

const (
	recordingDevicePath    = "/dev/maia-sdr-recording"
	recordingBaseAddrSysfs = "/sys/class/maia-sdr/maia-sdr-recording/device/recording_base_address"
)

// Buffer is a read-only view over the mmap'd recorder memory, yielding
// expanded output bytes chunkItems samples at a time (spec.md §4.H
// steps 1-3/5), grounded on original_source recording.rs's
// RecordingBuffer.
type Buffer struct {
	file *os.File
	raw  []byte
	mode Mode

	offset int // bytes already consumed from raw

	pending    []byte // expanded bytes not yet delivered to a Read caller
	pendingOff int
}

// OpenBuffer reads the recording base address from sysfs, computes
// the (possibly max-duration-clipped) raw byte size, and mmaps that
// many bytes of /dev/maia-sdr-recording read-only.
func OpenBuffer(mode Mode, nextAddress uint64, maxItems *int) (*Buffer, error) {
	base, err := readRecordingBaseAddress()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientIO, "read recording_base_address", err)
	}
	if nextAddress < base {
		return nil, apperror.New(apperror.KindTransientIO, "recorder_next_address precedes recording_base_address")
	}

	size := int(nextAddress - base)
	inBytes := inputBytesPerItem(mode)
	if maxItems != nil {
		if maxSize := *maxItems * inBytes; maxSize < size {
			size = maxSize
		}
	}

	f, err := os.OpenFile(recordingDevicePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientIO, "open recording device", err)
	}

	raw, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, apperror.Wrap(apperror.KindTransientIO, "mmap recording device", err)
	}

	return &Buffer{file: f, raw: raw, mode: mode}, nil
}

func readRecordingBaseAddress() (uint64, error) {
	b, err := os.ReadFile(recordingBaseAddrSysfs)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse recording_base_address %q: %w", s, err)
	}
	return v, nil
}

// OutputSize is the total number of output bytes the buffer will
// yield (spec.md §4.H step 3).
func (b *Buffer) OutputSize() int {
	return b.size() / inputBytesPerItem(b.mode) * outputBytesPerItem(b.mode)
}

func (b *Buffer) size() int { return len(b.raw) }

// Read implements io.Reader, producing expanded output bytes in
// chunks of chunkItems input items (spec.md §4.H step 5). A caller
// buffer smaller than one expanded chunk is handled by holding the
// remainder in pending for the next call.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.pendingOff < len(b.pending) {
		n := copy(p, b.pending[b.pendingOff:])
		b.pendingOff += n
		return n, nil
	}

	if b.offset >= len(b.raw) {
		return 0, io.EOF
	}

	inBytes := inputBytesPerItem(b.mode)
	chunkBytes := inBytes * chunkItems
	remaining := len(b.raw) - b.offset
	if remaining > chunkBytes {
		remaining = chunkBytes
	}
	remaining -= remaining % inBytes // only whole items

	b.pending = expandChunk(b.mode, b.raw[b.offset:b.offset+remaining])
	b.pendingOff = 0
	b.offset += remaining

	n := copy(p, b.pending)
	b.pendingOff = n
	return n, nil
}

// Close releases the mmap and the underlying file descriptor.
func (b *Buffer) Close() error {
	err := unix.Munmap(b.raw)
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	return err
}
