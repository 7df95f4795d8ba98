package main

import (
	"encoding/json"
	"fmt"
	"os"

	hitfinder "github.com/next-exp/hitfinder_go/pkg"
)

func LoadConfiguration(filename string) (hitfinder.Configuration, error) {
	// Set default values
	config := hitfinder.DefaultConfiguration()
	config.Host = "localhost"
	config.User = "jpetreader"
	config.Passwd = "readonly"
	config.DBName = "JPET"

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config hitfinder.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Output format: %s", config.OutputFormat), "config")
	logger.Info(fmt.Sprintf("Histogram dir: %s", config.HistogramDir), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Number of thresholds: %d", config.NumberOfThresholds), "config")
	logger.Info(fmt.Sprintf("Edge max time: %g ps", config.SigChEdgeMaxTime), "config")
	logger.Info(fmt.Sprintf("Lead-trail max time: %g ps", config.SigChLeadTrailMaxTime), "config")
	logger.Info(fmt.Sprintf("Hit coincidence window: %g ps", config.HitCoincidenceWindow), "config")
	logger.Info(fmt.Sprintf("Trailing reference: %s", config.TrailingReference), "config")
	logger.Info(fmt.Sprintf("Trailing match: %s", config.TrailingMatch), "config")
	logger.Info(fmt.Sprintf("Use corrupted signal channels: %t", config.UseCorruptedSigCh), "config")
	logger.Info(fmt.Sprintf("Order thresholds by value: %t", config.OrderThresholdsByValue), "config")
	logger.Info(fmt.Sprintf("Require all thresholds: %t", config.RequireAllThresholds), "config")
	logger.Info(fmt.Sprintf("Reference PM: %d", config.ReferencePMID), "config")
	logger.Info(fmt.Sprintf("Reference scintillator: %d", config.ReferenceScinID), "config")
	logger.Info(fmt.Sprintf("Save control histograms: %t", config.SaveControlHistograms), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max windows: %d", config.MaxWindows), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
}
