package hitfinder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type TrailingReference string

const (
	// Level-k trailing edges are searched relative to the level-k leading edge
	ReferenceThreshold TrailingReference = "threshold"
	// Level-k trailing edges are searched relative to the level-1 anchor
	ReferenceAnchor TrailingReference = "anchor"
)

type TrailingMatch string

const (
	// Only trailing edges strictly after the reference time are matched
	MatchForward TrailingMatch = "forward"
	// Trailing edges on either side of the reference time are matched
	MatchSymmetric TrailingMatch = "symmetric"
)

type Configuration struct {
	NumberOfThresholds     int               `json:"number_of_thresholds" validate:"gte=1"`
	SigChEdgeMaxTime       float64           `json:"sigch_edge_max_time" validate:"gt=0"`
	SigChLeadTrailMaxTime  float64           `json:"sigch_lead_trail_max_time" validate:"gt=0"`
	HitCoincidenceWindow   float64           `json:"hit_coincidence_window" validate:"gt=0"`
	SaveControlHistograms  bool              `json:"save_control_histograms"`
	UseCorruptedSigCh      bool              `json:"use_corrupted_sigch"`
	ReferencePMID          int               `json:"reference_pm_id"`
	ReferenceScinID        int               `json:"reference_scin_id"`
	OrderThresholdsByValue bool              `json:"order_thresholds_by_value"`
	TrailingReference      TrailingReference `json:"trailing_reference" validate:"oneof=threshold anchor"`
	TrailingMatch          TrailingMatch     `json:"trailing_match" validate:"oneof=forward symmetric"`
	RequireAllThresholds   bool              `json:"require_all_thresholds"`
	Verbosity              int               `json:"verbosity" validate:"gte=0"`
	FileIn                 string            `json:"file_in"`
	FileOut                string            `json:"file_out"`
	OutputFormat           string            `json:"output_format" validate:"oneof=hdf5 msgpack"`
	HistogramDir           string            `json:"histogram_dir"`
	NoDB                   bool              `json:"no_db"`
	DBDriver               string            `json:"db_driver" validate:"oneof=mysql sqlite postgres"`
	Host                   string            `json:"host"`
	User                   string            `json:"user"`
	Passwd                 string            `json:"pass"`
	DBName                 string            `json:"dbname"`
	RunNumber              int               `json:"run_number" validate:"gte=0"`
	NumWorkers             int               `json:"num_workers" validate:"gte=1"`
	MaxWindows             int               `json:"max_windows" validate:"gte=0"`
	Skip                   int               `json:"skip" validate:"gte=0"`
	WriteData              bool              `json:"write_data"`
	CompressionLevel       int               `json:"compression_level" validate:"gte=0,lte=9"`
}

// DefaultConfiguration returns the values used when a parameter is not set
// in the configuration file.
func DefaultConfiguration() Configuration {
	return Configuration{
		NumberOfThresholds:    4,
		SigChEdgeMaxTime:      20000,
		SigChLeadTrailMaxTime: 300000,
		HitCoincidenceWindow:  25000,
		ReferencePMID:         -1,
		ReferenceScinID:       -1,
		TrailingReference:     ReferenceThreshold,
		TrailingMatch:         MatchForward,
		OutputFormat:          "hdf5",
		DBDriver:              "mysql",
		NumWorkers:            1,
		MaxWindows:            1000000000,
		WriteData:             true,
		CompressionLevel:      4,
	}
}

func (c Configuration) ClassifyOptions() ClassifyOptions {
	return ClassifyOptions{
		UseCorrupted:  c.UseCorruptedSigCh,
		ReferencePMID: c.ReferencePMID,
	}
}

func (c Configuration) MatchConfig() MatchConfig {
	return MatchConfig{
		NumberOfThresholds: c.NumberOfThresholds,
		EdgeMaxTime:        c.SigChEdgeMaxTime,
		LeadTrailMaxTime:   c.SigChLeadTrailMaxTime,
		TrailingReference:  c.TrailingReference,
		TrailingMatch:      c.TrailingMatch,
	}
}

func (c Configuration) BuildConfig() BuildConfig {
	return BuildConfig{
		MatchConfig:           c.MatchConfig(),
		SaveControlHistograms: c.SaveControlHistograms,
	}
}

func (c Configuration) PairConfig() PairConfig {
	return PairConfig{
		CoincidenceWindow:     c.HitCoincidenceWindow,
		RequireAllThresholds:  c.RequireAllThresholds,
		NumberOfThresholds:    c.NumberOfThresholds,
		ReferenceScinID:       c.ReferenceScinID,
		SaveControlHistograms: c.SaveControlHistograms,
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report parameters by their name in the configuration file
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == "" || tag == "-" {
			return fld.Name
		}
		return tag
	})
	return v
}

// Validate checks the parameter ranges. Every offending parameter is
// reported as an *ErrConfig.
func (c Configuration) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	errs := make([]error, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		reason := fmt.Sprintf("failed %q check", fieldErr.Tag())
		if fieldErr.Param() != "" {
			reason = fmt.Sprintf("must satisfy %s=%s, got %v", fieldErr.Tag(), fieldErr.Param(), fieldErr.Value())
		}
		errs = append(errs, &ErrConfig{Parameter: fieldErr.Field(), Reason: reason})
	}
	return errors.Join(errs...)
}
