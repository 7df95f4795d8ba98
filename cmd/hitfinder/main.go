package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	sqlx "github.com/jmoiron/sqlx"
	hitfinder "github.com/next-exp/hitfinder_go/pkg"
)

var dbConn *sqlx.DB
var configuration hitfinder.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if err := configuration.Validate(); err != nil {
		message := fmt.Errorf("Invalid configuration: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	hitfinder.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	if err := run(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	start := time.Now()
	runID := uuid.New().String()

	file, err := os.Open(configuration.FileIn)
	if err != nil {
		return &hitfinder.ErrOpenFile{Filename: configuration.FileIn, Err: err}
	}
	defer file.Close()

	fileReader, err := NewFileReader(file)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", configuration.FileIn, err)
	}
	runNumber := configuration.RunNumber
	if runNumber == 0 {
		runNumber = int(fileReader.Header.RunNumber)
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Run %d (%s), %d windows in file", runNumber, runID, fileReader.Header.WindowCount)
		logger.Info(message, "main")
	}

	processor := hitfinder.Processor{Config: configuration}
	if !configuration.NoDB {
		dbConn, err = hitfinder.ConnectToDatabase(configuration.DBDriver, configuration.User,
			configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			return fmt.Errorf("Error connection to database: %w", err)
		}
		defer dbConn.Close()

		lookups, err := hitfinder.LoadDatabase(dbConn, runNumber, VerbosityLevel)
		if err != nil {
			return err
		}
		processor.Resolver = lookups.Channels
		processor.Calibration = lookups.Calibration
		processor.Velocities = lookups.Calibration
		processor.Orderings = hitfinder.FindThresholdOrders(lookups.Channels)
	}

	sink, err := createSink(runNumber, runID)
	if err != nil {
		return err
	}

	histograms := runWorkers(fileReader, processor, configuration.NumWorkers, sink)

	if err := sink.Close(); err != nil {
		logger.Error(err.Error())
	}

	if configuration.SaveControlHistograms && configuration.HistogramDir != "" {
		if err := hitfinder.SavePlots(histograms, configuration.HistogramDir); err != nil {
			logger.Error(fmt.Errorf("error saving control histograms: %w", err).Error())
		}
	}

	duration := time.Since(start)
	message := fmt.Sprintf("Total time: %d ms", duration.Milliseconds())
	logger.Info(message, "main")
	return nil
}

func createSink(runNumber int, runID string) (hitfinder.Sink, error) {
	if !configuration.WriteData {
		return hitfinder.NewMemorySink(), nil
	}
	switch configuration.OutputFormat {
	case "msgpack":
		return hitfinder.NewMsgpackSink(configuration.FileOut, runNumber, runID)
	default:
		return hitfinder.NewWriter(configuration.FileOut, runNumber, runID, configuration.CompressionLevel)
	}
}
