// Package dmaring implements component B: a binding over a ring of
// fixed-size DMA buffers exposed as a character device, grounded on
// original_source/maia-httpd/src/rxbuffer.rs (device open + mmap +
// cache-invalidate ioctl) and fpga.rs's Dma::get_new_buffers (the
// drain algorithm), translated into the teacher's ring/fingerprint
// bookkeeping idiom from buffer/buffer.go.
package dmaring

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

// cacheInvalidateIoctl builds the write-int ioctl request number
// described in spec.md §4.B / §6: magic 'M', command 0, following the
// Linux _IOW(type, nr, size) convention used by ioctl_write_int! in
// the Rust original (rxbuffer.rs).
const (
	iocWrite    = 1
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocNRShift  = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioW(typ byte, nr uint, size uintptr) uintptr {
	return uintptr(iocWrite)<<iocDirShift |
		uintptr(typ)<<iocTypeShift |
		uintptr(nr)<<iocNRShift |
		size<<iocSizeShift
}

var cacheInvalidateRequest = ioW('M', 0, 4)

// Ring is a memory-mapped ring of N fixed-size DMA buffers (spec.md
// §3/§4.B). N is required to be a power of two.
type Ring struct {
	file       *os.File
	raw        []byte
	bufferSize int
	numBuffers int
	mask       int

	lastWritten    int
	hasLastWritten bool
}

// Open opens /dev/<name>, reads its buffer geometry from
// /sys/class/maia-sdr/<name>/device/{buffer_size,num_buffers}, and
// mmaps the whole ring read-only.
func Open(name string) (*Ring, error) {
	devPath := "/dev/" + name
	sysBase := "/sys/class/maia-sdr/" + name + "/device"

	bufferSize, err := readHexAttr(sysBase + "/buffer_size")
	if err != nil {
		return nil, err
	}
	numBuffers, err := readDecimalAttr(sysBase + "/num_buffers")
	if err != nil {
		return nil, err
	}
	if numBuffers == 0 || numBuffers&(numBuffers-1) != 0 {
		return nil, apperror.New(apperror.KindHardwareUnavailable,
			fmt.Sprintf("dma ring %q: num_buffers %d is not a power of two", name, numBuffers))
	}

	f, err := os.OpenFile(devPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindHardwareUnavailable, "open dma ring device", err)
	}

	size := bufferSize * numBuffers
	raw, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, apperror.Wrap(apperror.KindHardwareUnavailable, "mmap dma ring", err)
	}

	return &Ring{
		file:       f,
		raw:        raw,
		bufferSize: bufferSize,
		numBuffers: numBuffers,
		mask:       numBuffers - 1,
	}, nil
}

func readHexAttr(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindHardwareUnavailable, "read sysfs attribute "+path, err)
	}
	text := strings.TrimSpace(string(data))
	text, ok := strings.CutPrefix(text, "0x")
	if !ok {
		return 0, apperror.New(apperror.KindTransientIO, "sysfs attribute missing 0x prefix: "+path)
	}
	v, err := strconv.ParseInt(text, 16, 64)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "parse sysfs attribute "+path, err)
	}
	return int(v), nil
}

func readDecimalAttr(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindHardwareUnavailable, "read sysfs attribute "+path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "parse sysfs attribute "+path, err)
	}
	return v, nil
}

// NumBuffers returns the ring's buffer count.
func (r *Ring) NumBuffers() int { return r.numBuffers }

// BufferSize returns the size in bytes of one buffer.
func (r *Ring) BufferSize() int { return r.bufferSize }

// buffer returns the raw bytes of buffer i, with no aliasing check
// across buffers (matches rxbuffer.rs's buffer_as_slice).
func (r *Ring) buffer(i int) []byte {
	off := i * r.bufferSize
	return r.raw[off : off+r.bufferSize]
}

// CacheInvalidate issues the write-only ioctl invalidating the CPU
// cache for buffer i, required before reading it if the FPGA wrote it
// since the last invalidation.
func (r *Ring) CacheInvalidate(i int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, r.file.Fd(), cacheInvalidateRequest, uintptr(i))
	if errno != 0 {
		return apperror.Wrap(apperror.KindHardwareUnavailable, "dma ring cache invalidate ioctl", errno)
	}
	return nil
}

// Drain returns, in strictly ascending ring order, the buffers
// written since the last drain up to and including currentLast (the
// hardware's "last written" index read from a register), following
// fpga.rs's Dma::get_new_buffers. Each returned buffer has already
// had its CPU cache invalidated. The same index is never yielded
// twice across calls: invariant checked by internal/dmaring's tests
// and spec.md §8 "DMA drain is a permutation".
func (r *Ring) Drain(currentLast int) ([][]byte, error) {
	indices := drainIndices(r.mask, r.hasLastWritten, r.lastWritten, currentLast)

	out := make([][]byte, 0, len(indices))
	for _, n := range indices {
		if err := r.CacheInvalidate(n); err != nil {
			return out, err
		}
		out = append(out, r.buffer(n))
	}
	r.lastWritten = currentLast
	r.hasLastWritten = true
	return out, nil
}

// drainIndices computes the ascending, wrap-aware sequence of ring
// indices a Drain call must yield, isolated from device I/O so the
// permutation property (spec.md §8) can be tested without hardware.
func drainIndices(mask int, hasLastWritten bool, lastWritten, currentLast int) []int {
	var start int
	if hasLastWritten {
		start = (lastWritten + 1) & mask
	} else {
		start = (currentLast + 1) & mask
	}
	end := (currentLast + 1) & mask

	var out []int
	for n := start; n != end; n = (n + 1) & mask {
		out = append(out, n)
	}
	return out
}

// Close unmaps the ring and closes the device file.
func (r *Ring) Close() error {
	if r.raw != nil {
		if err := unix.Munmap(r.raw); err != nil {
			return err
		}
		r.raw = nil
	}
	return r.file.Close()
}
