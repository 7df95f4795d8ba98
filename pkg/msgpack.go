package hitfinder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

type RunHeader struct {
	RunNumber int    `msgpack:"run_number"`
	RunID     string `msgpack:"run_id"`
}

// PulseRecord lists the points of a pulse level by level. Trail is zero
// where HasTrail is false.
type PulseRecord struct {
	PM       int       `msgpack:"pm"`
	Scin     int       `msgpack:"scin"`
	Side     string    `msgpack:"side"`
	Time     float64   `msgpack:"time"`
	TOT      float64   `msgpack:"tot"`
	Flag     string    `msgpack:"flag"`
	Levels   []int     `msgpack:"levels"`
	Lead     []float64 `msgpack:"lead"`
	Trail    []float64 `msgpack:"trail"`
	HasTrail []bool    `msgpack:"has_trail"`
}

type HitRecord struct {
	Scin          int     `msgpack:"scin"`
	Time          float64 `msgpack:"time"`
	TimeDiff      float64 `msgpack:"time_diff"`
	Energy        float64 `msgpack:"energy"`
	X             float64 `msgpack:"x"`
	Y             float64 `msgpack:"y"`
	Z             float64 `msgpack:"z"`
	PositionValid bool    `msgpack:"position_valid"`
	PMA           int     `msgpack:"pm_a"`
	PMB           int     `msgpack:"pm_b"`
}

// WindowRecord is one element of the stream after the RunHeader. Pulses and
// hits of a window are written as two consecutive records.
type WindowRecord struct {
	Window uint64        `msgpack:"window"`
	Pulses []PulseRecord `msgpack:"pulses,omitempty"`
	Hits   []HitRecord   `msgpack:"hits,omitempty"`
}

func NewPulseRecord(pulse *Pulse) PulseRecord {
	record := PulseRecord{
		PM:   pulse.PM,
		Scin: pulse.Scin,
		Side: pulse.Side.String(),
		Time: pulse.Time,
		TOT:  pulse.TOT,
		Flag: pulse.Flag.String(),
	}
	for _, point := range pulse.Points {
		record.Levels = append(record.Levels, point.Level)
		record.Lead = append(record.Lead, point.Leading.Time)
		trail := 0.0
		if point.Trailing != nil {
			trail = point.Trailing.Time
		}
		record.Trail = append(record.Trail, trail)
		record.HasTrail = append(record.HasTrail, point.Trailing != nil)
	}
	return record
}

func NewHitRecord(hit *Hit) HitRecord {
	record := HitRecord{
		Scin:          hit.Scin,
		Time:          hit.Time,
		TimeDiff:      hit.TimeDiff,
		Energy:        hit.Energy,
		X:             hit.Position.X,
		Y:             hit.Position.Y,
		Z:             hit.Position.Z,
		PositionValid: hit.PositionValid,
		PMA:           -1,
		PMB:           -1,
	}
	if hit.A != nil {
		record.PMA = hit.A.PM
	}
	if hit.B != nil {
		record.PMB = hit.B.PM
	}
	return record
}

// MsgpackSink streams the output as MessagePack records. It needs no C
// library, unlike the HDF5 writer.
type MsgpackSink struct {
	Filename string
	file     *os.File
	buf      *bufio.Writer
	encoder  *msgpack.Encoder
}

func NewMsgpackSink(filename string, runNumber int, runID string) (*MsgpackSink, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	sink, err := newMsgpackSink(file, runNumber, runID)
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	sink.Filename = filename
	sink.file = file
	return sink, nil
}

func newMsgpackSink(w io.Writer, runNumber int, runID string) (*MsgpackSink, error) {
	buf := bufio.NewWriter(w)
	sink := &MsgpackSink{buf: buf, encoder: msgpack.NewEncoder(buf)}
	if err := sink.encoder.Encode(RunHeader{RunNumber: runNumber, RunID: runID}); err != nil {
		return nil, fmt.Errorf("error writing run header: %w", err)
	}
	return sink, nil
}

func (m *MsgpackSink) WritePulses(window uint64, pulses []Pulse) error {
	record := WindowRecord{Window: window, Pulses: make([]PulseRecord, len(pulses))}
	for i := range pulses {
		record.Pulses[i] = NewPulseRecord(&pulses[i])
	}
	return m.encoder.Encode(record)
}

func (m *MsgpackSink) WriteHits(window uint64, hits []Hit) error {
	record := WindowRecord{Window: window, Hits: make([]HitRecord, len(hits))}
	for i := range hits {
		record.Hits[i] = NewHitRecord(&hits[i])
	}
	return m.encoder.Encode(record)
}

func (m *MsgpackSink) Close() error {
	var errs []error
	if err := m.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("error flushing %s: %w", m.Filename, err))
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ReadMsgpackStream decodes a stream written by MsgpackSink.
func ReadMsgpackStream(r io.Reader) (RunHeader, []WindowRecord, error) {
	decoder := msgpack.NewDecoder(r)
	var header RunHeader
	if err := decoder.Decode(&header); err != nil {
		return header, nil, fmt.Errorf("error reading run header: %w", err)
	}
	records := make([]WindowRecord, 0)
	for {
		var record WindowRecord
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return header, records, nil
		}
		if err != nil {
			return header, records, err
		}
		records = append(records, record)
	}
}
