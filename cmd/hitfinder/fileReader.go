package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	hitfinder "github.com/next-exp/hitfinder_go/pkg"
)

type FileReader struct {
	File     *os.File
	Header   hitfinder.FileHeaderStruct
	WinCount int
	reader   *bufio.Reader
}

func NewFileReader(file *os.File) (*FileReader, error) {
	reader := bufio.NewReader(file)
	header, err := hitfinder.ReadFileHeader(reader)
	if err != nil {
		return nil, err
	}
	return &FileReader{File: file, Header: header, WinCount: -1, reader: reader}, nil
}

// getNextWindow honours the skip and max_windows parameters.
func (f *FileReader) getNextWindow() (hitfinder.TimeWindow, error) {
	for {
		window, err := hitfinder.ReadWindow(f.reader)
		if err != nil {
			return window, err
		}
		f.WinCount++
		if f.WinCount >= configuration.MaxWindows {
			if VerbosityLevel > 0 {
				logger.Info("Max windows reached", "fileReader")
			}
			return window, io.EOF
		}
		if f.WinCount < configuration.Skip {
			if VerbosityLevel > 1 {
				message := fmt.Sprintf("Skipping window %d with index %d", f.WinCount, window.Index)
				logger.Info(message, "fileReader")
			}
			continue
		}
		if VerbosityLevel > 1 {
			message := fmt.Sprintf("Reading window %d with index %d", f.WinCount, window.Index)
			logger.Info(message, "fileReader")
		}
		return window, nil
	}
}
