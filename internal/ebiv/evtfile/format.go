// Package evtfile reads and writes the packed 64-bit event file format.
//
// File layout (all fields little-endian):
//
//	offset  size  field
//	0       4     signature "EVT3"
//	4       4     padding
//	8       8     file size in bytes
//	16      8     event count
//	24      8     recording time stamp [µs]
//	32      4     duration [µs]
//	36      4     header length (64)
//	40      4     sensor width (columns)
//	44      4     sensor height (rows)
//	48      16    reserved, zero
//
// Each event record is 8 bytes: x uint16, y uint16, then a uint32 holding
// the time in the upper 31 bits and the polarity in bit 0.
package evtfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/fsutil"
)

// Layout constants.
const (
	HeaderSize = 64
	RecordSize = 8

	// MaxTime is the largest event time a record can carry.
	MaxTime = 1<<31 - 1

	offSignature  = 0
	offFileSize   = 8
	offEventCount = 16
	offTimeStamp  = 24
	offDuration   = 32
	offHeaderLen  = 36
	offWidth      = 40
	offHeight     = 44
)

// Signature identifies the format.
var Signature = [4]byte{'E', 'V', 'T', '3'}

// ErrBadSignature is returned when a file does not start with "EVT3".
var ErrBadSignature = errors.New("evtfile: bad signature")

// Header is the decoded 64-byte file header.
type Header struct {
	FileSize     uint64
	EventCount   uint64
	TimeStamp    uint64
	Duration     uint32
	HeaderLength uint32
	Width        uint32
	Height       uint32
}

// Window selects a time range of events. Events with
// Offset <= t <= Offset+Duration are kept; Duration <= 0 keeps
// everything from Offset to the end.
type Window struct {
	Offset   int64
	Duration int64
}

func (w Window) contains(t int64) bool {
	if t < w.Offset {
		return false
	}
	return w.Duration <= 0 || t <= w.Offset+w.Duration
}

func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offSignature:], Signature[:])
	binary.LittleEndian.PutUint64(buf[offFileSize:], h.FileSize)
	binary.LittleEndian.PutUint64(buf[offEventCount:], h.EventCount)
	binary.LittleEndian.PutUint64(buf[offTimeStamp:], h.TimeStamp)
	binary.LittleEndian.PutUint32(buf[offDuration:], h.Duration)
	binary.LittleEndian.PutUint32(buf[offHeaderLen:], h.HeaderLength)
	binary.LittleEndian.PutUint32(buf[offWidth:], h.Width)
	binary.LittleEndian.PutUint32(buf[offHeight:], h.Height)
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if [4]byte(buf[offSignature:offSignature+4]) != Signature {
		return Header{}, fmt.Errorf("%w: %q", ErrBadSignature, buf[offSignature:offSignature+4])
	}
	h := Header{
		FileSize:     binary.LittleEndian.Uint64(buf[offFileSize:]),
		EventCount:   binary.LittleEndian.Uint64(buf[offEventCount:]),
		TimeStamp:    binary.LittleEndian.Uint64(buf[offTimeStamp:]),
		Duration:     binary.LittleEndian.Uint32(buf[offDuration:]),
		HeaderLength: binary.LittleEndian.Uint32(buf[offHeaderLen:]),
		Width:        binary.LittleEndian.Uint32(buf[offWidth:]),
		Height:       binary.LittleEndian.Uint32(buf[offHeight:]),
	}
	if h.HeaderLength < HeaderSize {
		return Header{}, fmt.Errorf("evtfile: header length %d shorter than %d", h.HeaderLength, HeaderSize)
	}
	return h, nil
}

func putRecord(buf []byte, ev events.Event) {
	binary.LittleEndian.PutUint16(buf[0:], ev.X)
	binary.LittleEndian.PutUint16(buf[2:], ev.Y)
	binary.LittleEndian.PutUint32(buf[4:], uint32(ev.T)<<1|uint32(ev.P&1))
}

func parseRecord(buf []byte) events.Event {
	tp := binary.LittleEndian.Uint32(buf[4:])
	return events.Event{
		X: binary.LittleEndian.Uint16(buf[0:]),
		Y: binary.LittleEndian.Uint16(buf[2:]),
		T: int64(tp >> 1),
		P: uint8(tp & 1),
	}
}

// Write encodes the events of s that fall inside win. The header carries the
// store's sensor size and time stamp; its duration spans from the window
// start to the last written event.
func Write(w io.Writer, s *events.Store, win Window) (Header, error) {
	t, _, _, _ := s.Columns()
	lo := 0
	for lo < len(t) && t[lo] < win.Offset {
		lo++
	}
	hi := lo
	for hi < len(t) && win.contains(t[hi]) {
		if t[hi] < 0 || t[hi] > MaxTime {
			return Header{}, fmt.Errorf("%w: event time %d outside [0, %d]", ebiv.ErrInvalidArgument, t[hi], MaxTime)
		}
		hi++
	}

	height, width := s.SensorSize()
	ts := s.TimeStamp()
	if ts < 0 {
		return Header{}, fmt.Errorf("%w: negative time stamp %d", ebiv.ErrInvalidArgument, ts)
	}
	n := hi - lo
	hdr := Header{
		FileSize:     uint64(HeaderSize + n*RecordSize),
		EventCount:   uint64(n),
		TimeStamp:    uint64(ts),
		HeaderLength: HeaderSize,
		Width:        uint32(width),
		Height:       uint32(height),
	}
	if n > 0 {
		hdr.Duration = uint32(t[hi-1] - max(win.Offset, 0))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr.marshal()); err != nil {
		return Header{}, fmt.Errorf("evtfile: write header: %w", err)
	}
	var rec [RecordSize]byte
	for i := lo; i < hi; i++ {
		putRecord(rec[:], s.At(i))
		if _, err := bw.Write(rec[:]); err != nil {
			return Header{}, fmt.Errorf("evtfile: write event %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return Header{}, fmt.Errorf("evtfile: flush: %w", err)
	}
	return hdr, nil
}

// Read decodes an event file and returns the events inside win as a Store.
// The window is in absolute event time. A truncated record stream is an
// error; records beyond EventCount are ignored.
func Read(r io.Reader, win Window) (*events.Store, Header, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, Header{}, fmt.Errorf("evtfile: read header: %w", err)
	}
	hdr, err := parseHeader(buf)
	if err != nil {
		return nil, Header{}, err
	}
	if extra := int64(hdr.HeaderLength) - HeaderSize; extra > 0 {
		if _, err := io.CopyN(io.Discard, br, extra); err != nil {
			return nil, Header{}, fmt.Errorf("evtfile: skip header: %w", err)
		}
	}
	if hdr.TimeStamp > math.MaxInt64 {
		return nil, Header{}, fmt.Errorf("evtfile: time stamp %d out of range", hdr.TimeStamp)
	}

	rec := events.Recording{
		Width:     int(hdr.Width),
		Height:    int(hdr.Height),
		TimeStamp: int64(hdr.TimeStamp),
	}
	var raw [RecordSize]byte
	for i := uint64(0); i < hdr.EventCount; i++ {
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return nil, Header{}, fmt.Errorf("evtfile: read event %d of %d: %w", i, hdr.EventCount, err)
		}
		ev := parseRecord(raw[:])
		if ev.T < win.Offset {
			continue
		}
		if !win.contains(ev.T) {
			break
		}
		rec.T = append(rec.T, ev.T)
		rec.X = append(rec.X, ev.X)
		rec.Y = append(rec.Y, ev.Y)
		rec.P = append(rec.P, ev.P)
	}

	s, err := events.NewStore(rec)
	if err != nil {
		return nil, Header{}, fmt.Errorf("evtfile: %w", err)
	}
	return s, hdr, nil
}

// Load reads the event file at path.
func Load(fsys fsutil.FileSystem, path string, win Window) (*events.Store, Header, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("evtfile: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, win)
}

// Save writes the events of s inside win to path.
func Save(fsys fsutil.FileSystem, path string, s *events.Store, win Window) (Header, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return Header{}, fmt.Errorf("evtfile: create %s: %w", path, err)
	}
	hdr, err := Write(f, s, win)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("evtfile: close %s: %w", path, cerr)
	}
	return hdr, err
}
