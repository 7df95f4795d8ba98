package hitfinder

import (
	"errors"
	"fmt"
	"sync"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Sink receives the reconstructed pulses and hits of each window, in window
// order.
type Sink interface {
	WritePulses(window uint64, pulses []Pulse) error
	WriteHits(window uint64, hits []Hit) error
	Close() error
}

type Writer struct {
	File         *hdf5.File
	Filename     string
	RunGroup     *hdf5.Group
	RecoGroup    *hdf5.Group
	RunInfoTable *hdf5.Dataset
	PulsesTable  *hdf5.Dataset
	HitsTable    *hdf5.Dataset
	PulseCounter int
	HitCounter   int
}

// NewWriter creates the output file with a Run group holding the run
// number and identifier, and a Reco group with the pulses and hits tables.
func NewWriter(filename string, runNumber int, runID string, compression int) (*Writer, error) {
	logger.Info(fmt.Sprintf("Creating file: %s", filename), "writer")
	writer := &Writer{Filename: filename}
	var err error

	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.RecoGroup, err = createGroup(writer.File, "Reco"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compression); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.PulsesTable, err = createTable(writer.RecoGroup, "pulses", PulseHDF5{}, compression); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.HitsTable, err = createTable(writer.RecoGroup, "hits", HitHDF5{}, compression); err != nil {
		return nil, errors.Join(err, writer.Close())
	}

	runInfo := RunInfoHDF5{
		run_number: int32(runNumber),
		run_id:     convertToHdf5String(runID),
	}
	if err := writeEntryToTable(writer.RunInfoTable, runInfo, 0); err != nil {
		return nil, errors.Join(fmt.Errorf("error writing run info: %w", err), writer.Close())
	}
	return writer, nil
}

func pulseRow(window uint64, pulse *Pulse) PulseHDF5 {
	return PulseHDF5{
		window: window,
		pm:     int32(pulse.PM),
		scin:   int32(pulse.Scin),
		side:   int8(pulse.Side),
		time:   pulse.Time,
		tot:    pulse.TOT,
		nLead:  int8(pulse.LeadingCount()),
		nTrail: int8(pulse.TrailingCount()),
		flag:   int8(pulse.Flag),
	}
}

func hitRow(window uint64, hit *Hit) HitHDF5 {
	row := HitHDF5{
		window:   window,
		scin:     int32(hit.Scin),
		time:     hit.Time,
		timeDiff: hit.TimeDiff,
		energy:   hit.Energy,
		posX:     hit.Position.X,
		posY:     hit.Position.Y,
		posZ:     hit.Position.Z,
		pmA:      -1,
		pmB:      -1,
	}
	if hit.PositionValid {
		row.posValid = 1
	}
	if hit.A != nil {
		row.pmA = int32(hit.A.PM)
	}
	if hit.B != nil {
		row.pmB = int32(hit.B.PM)
	}
	return row
}

func (w *Writer) WritePulses(window uint64, pulses []Pulse) error {
	// The array MUST be allocated at creation, appends will make HDF5 panic
	rows := make([]PulseHDF5, len(pulses))
	for i := range pulses {
		rows[i] = pulseRow(window, &pulses[i])
	}
	if err := writeArrayToTable(w.PulsesTable, &rows, w.PulseCounter); err != nil {
		return fmt.Errorf("error writing pulses of window %d: %w", window, err)
	}
	w.PulseCounter += len(rows)
	return nil
}

func (w *Writer) WriteHits(window uint64, hits []Hit) error {
	rows := make([]HitHDF5, len(hits))
	for i := range hits {
		rows[i] = hitRow(window, &hits[i])
	}
	if err := writeArrayToTable(w.HitsTable, &rows, w.HitCounter); err != nil {
		return fmt.Errorf("error writing hits of window %d: %w", window, err)
	}
	w.HitCounter += len(rows)
	return nil
}

func (w *Writer) Close() error {
	logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "writer")
	var errs []error

	if w.RunInfoTable != nil {
		if err := w.RunInfoTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run info table: %w", err))
		}
	}
	if w.PulsesTable != nil {
		if err := w.PulsesTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing pulses table: %w", err))
		}
	}
	if w.HitsTable != nil {
		if err := w.HitsTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing hits table: %w", err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if w.RecoGroup != nil {
		if err := w.RecoGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing reco group: %w", err))
		}
	}
	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MemorySink keeps everything in memory. Used for dry runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	Windows []uint64
	Pulses  map[uint64][]Pulse
	Hits    map[uint64][]Hit
	Closed  bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		Pulses: make(map[uint64][]Pulse),
		Hits:   make(map[uint64][]Hit),
	}
}

func (m *MemorySink) WritePulses(window uint64, pulses []Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return errors.New("memory sink is closed")
	}
	m.Windows = append(m.Windows, window)
	m.Pulses[window] = append(m.Pulses[window], pulses...)
	return nil
}

func (m *MemorySink) WriteHits(window uint64, hits []Hit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return errors.New("memory sink is closed")
	}
	m.Hits[window] = append(m.Hits[window], hits...)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
