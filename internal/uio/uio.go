// Package uio implements component A: a userspace binding over the
// Linux UIO (userspace I/O) framework, grounded on
// original_source/maia-httpd/src/uio.rs, translated from Rust's
// async/tokio file I/O to blocking os.File + golang.org/x/sys/unix,
// following the teacher's direct mmap'd-device style in fpga/fpga.go.
package uio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

const sysfsUIOClass = "/sys/class/uio"

// Device represents an opened UIO character device (spec.md §4.A).
type Device struct {
	num  int
	file *os.File
}

// OpenByName scans /sys/class/uio for a uioN whose "name" attribute
// equals name and opens /dev/uioN.
func OpenByName(name string) (*Device, error) {
	num, err := findByName(name)
	if err != nil {
		return nil, err
	}
	return OpenByNum(num)
}

// OpenByNum opens /dev/uio<num> directly.
func OpenByNum(num int) (*Device, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/uio%d", num), os.O_RDWR, 0)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindHardwareUnavailable, "open uio device", err)
	}
	return &Device{num: num, file: f}, nil
}

func findByName(name string) (int, error) {
	entries, err := os.ReadDir(sysfsUIOClass)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindHardwareUnavailable, "enumerate uio class", err)
	}
	for _, entry := range entries {
		num, ok := strings.CutPrefix(entry.Name(), "uio")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		this, err := os.ReadFile(filepath.Join(sysfsUIOClass, entry.Name(), "name"))
		if err != nil {
			continue
		}
		if strings.TrimRight(string(this), "\n") == name {
			return n, nil
		}
	}
	return 0, apperror.New(apperror.KindHardwareUnavailable, "uio device not found: "+name)
}

func (d *Device) attrHex(mapping int, attr string) (uint64, error) {
	path := fmt.Sprintf("/sys/class/uio/uio%d/maps/map%d/%s", d.num, mapping, attr)
	f, err := os.Open(path)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindHardwareUnavailable, "read uio map attribute", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, apperror.New(apperror.KindTransientIO, "empty uio map attribute: "+path)
	}
	text := strings.TrimSpace(scanner.Text())
	text, ok := strings.CutPrefix(text, "0x")
	if !ok {
		return 0, apperror.New(apperror.KindTransientIO, "uio map attribute missing 0x prefix: "+path)
	}
	v, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "parse uio map attribute", err)
	}
	return v, nil
}

// MapSize returns the size, in bytes, of the given mapping index.
func (d *Device) MapSize(mapping int) (uint64, error) { return d.attrHex(mapping, "size") }

// MapOffset returns the offset (relative to the page-aligned mmap)
// of the given mapping index.
func (d *Device) MapOffset(mapping int) (uint64, error) { return d.attrHex(mapping, "offset") }

// Mapping is a memory-mapped UIO register window (spec.md §4.A).
// Drop semantics in the original are replaced by an explicit Close,
// the idiomatic Go equivalent.
type Mapping struct {
	raw       []byte
	effective uintptr
}

// Map maps window `mapping` of the device. The window is opened at a
// page-aligned offset of mapping*pageSize into the device file, then
// the returned base pointer is adjusted by the mapping's sysfs
// "offset" attribute, matching uio.rs's map_mapping.
func (d *Device) Map(mapping int) (*Mapping, error) {
	size, err := d.MapSize(mapping)
	if err != nil {
		return nil, err
	}
	offset, err := d.MapOffset(mapping)
	if err != nil {
		return nil, err
	}
	pageSize := uint64(os.Getpagesize())
	fileOffset := int64(uint64(mapping) * pageSize)

	raw, err := unix.Mmap(int(d.file.Fd()), fileOffset, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindHardwareUnavailable, "mmap uio window", err)
	}
	base := uintptr(unsafe.Pointer(&raw[0]))
	return &Mapping{raw: raw, effective: base + uintptr(offset)}, nil
}

// Addr returns the effective base address of the mapping, for
// unsafe.Pointer struct-overlay access by internal/fpga.
func (m *Mapping) Addr() uintptr { return m.effective }

// Close unmaps the region.
func (m *Mapping) Close() error {
	if m.raw == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw = nil
	return err
}

// IRQEnable arms the interrupt line by writing the native-endian
// value 1 to the device file (spec.md §4.A).
func (d *Device) IRQEnable() error {
	return d.writeIRQWord(1)
}

// IRQDisable disarms the interrupt line.
func (d *Device) IRQDisable() error {
	return d.writeIRQWord(0)
}

func (d *Device) writeIRQWord(v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	if _, err := d.file.Write(buf[:]); err != nil {
		return apperror.Wrap(apperror.KindTransientIO, "write uio irq control", err)
	}
	return nil
}

// IRQWait blocks reading the 4-byte interrupt sequence number. This
// is the interrupt loop's only suspension point.
func (d *Device) IRQWait() (uint32, error) {
	var buf [4]byte
	if _, err := readFull(d.file, buf[:]); err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "uio irq wait", err)
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

// Close closes the underlying device file. Once closed, any
// in-flight IRQWait fails, which is how the interrupt dispatcher is
// torn down (spec.md §4.J).
func (d *Device) Close() error {
	return d.file.Close()
}

// FD exposes the raw file descriptor, e.g. for select/poll-based
// shutdown plumbing.
func (d *Device) FD() uintptr { return d.file.Fd() }
