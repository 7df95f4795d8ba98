package hitfinder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Edge files are little endian: one FileHeaderStruct followed by windows,
// each a WindowHeaderStruct and EdgeCount EdgeRecordStruct.
var FileMagic = [4]byte{'T', 'D', 'C', 'E'}

const FileVersion = 1

type FileHeaderStruct struct {
	Magic       [4]byte
	Version     uint16
	Reserved    uint16
	RunNumber   uint32
	WindowCount uint32
}

type WindowHeaderStruct struct {
	WindowSize  uint32
	EdgeCount   uint32
	WindowIndex uint64
}

type EdgeRecordStruct struct {
	Channel   uint32
	PM        uint32
	Threshold uint8
	EdgeType  uint8
	Flag      uint8
	Reserved  uint8
	Time      float64
}

var (
	windowHeaderSize = binary.Size(WindowHeaderStruct{})
	edgeRecordSize   = binary.Size(EdgeRecordStruct{})
)

var ErrBadMagic = errors.New("not a TDC edge file")

func ReadFileHeader(r io.Reader) (FileHeaderStruct, error) {
	var header FileHeaderStruct
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("error reading file header: %w", err)
	}
	if header.Magic != FileMagic {
		return header, ErrBadMagic
	}
	if header.Version != FileVersion {
		return header, fmt.Errorf("unsupported file version %d", header.Version)
	}
	return header, nil
}

// ReadWindow reads the next window. It returns io.EOF when the file ends on
// a window boundary and io.ErrUnexpectedEOF for a truncated window.
func ReadWindow(r io.Reader) (TimeWindow, error) {
	var header WindowHeaderStruct
	headerBinary := make([]byte, windowHeaderSize)
	if _, err := io.ReadFull(r, headerBinary); err != nil {
		return TimeWindow{}, err
	}
	binary.Read(bytes.NewReader(headerBinary), binary.LittleEndian, &header)

	payloadSize := int(header.EdgeCount) * edgeRecordSize
	if int(header.WindowSize) != windowHeaderSize+payloadSize {
		return TimeWindow{}, fmt.Errorf("window %d: size %d does not match %d edges",
			header.WindowIndex, header.WindowSize, header.EdgeCount)
	}
	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return TimeWindow{}, err
	}
	return decodeWindow(header, payload)
}

func decodeWindow(header WindowHeaderStruct, payload []byte) (TimeWindow, error) {
	records := make([]EdgeRecordStruct, header.EdgeCount)
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, records); err != nil {
		return TimeWindow{}, err
	}
	edges := make([]Edge, len(records))
	for i, record := range records {
		edgeType := Leading
		switch record.EdgeType {
		case 0:
		case 1:
			edgeType = Trailing
		default:
			return TimeWindow{}, fmt.Errorf("window %d: edge %d has unknown type %d",
				header.WindowIndex, i, record.EdgeType)
		}
		edges[i] = Edge{
			Channel:   int(record.Channel),
			Threshold: int(record.Threshold),
			Type:      edgeType,
			Time:      record.Time,
			Flag:      RecoFlag(record.Flag),
			PM:        int(record.PM),
		}
	}
	return NewEdgeWindow(header.WindowIndex, edges), nil
}

func WriteFileHeader(w io.Writer, runNumber int, windowCount int) error {
	header := FileHeaderStruct{
		Magic:       FileMagic,
		Version:     FileVersion,
		RunNumber:   uint32(runNumber),
		WindowCount: uint32(windowCount),
	}
	return binary.Write(w, binary.LittleEndian, header)
}

func WriteWindow(w io.Writer, window TimeWindow) error {
	if window.Kind != EdgeWindow {
		return fmt.Errorf("only edge windows can be written, got %s", window.Kind)
	}
	header := WindowHeaderStruct{
		WindowSize:  uint32(windowHeaderSize + len(window.Edges)*edgeRecordSize),
		EdgeCount:   uint32(len(window.Edges)),
		WindowIndex: window.Index,
	}
	records := make([]EdgeRecordStruct, len(window.Edges))
	for i, edge := range window.Edges {
		records[i] = EdgeRecordStruct{
			Channel:   uint32(edge.Channel),
			PM:        uint32(edge.PM),
			Threshold: uint8(edge.Threshold),
			EdgeType:  uint8(edge.Type),
			Flag:      uint8(edge.Flag),
			Time:      edge.Time,
		}
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, records)
}
