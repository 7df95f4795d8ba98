package hitfinder

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ChannelMap resolves TDC channels to detector units.
type ChannelMap map[int]ChannelInfo

func (m ChannelMap) Resolve(channel int) (ChannelInfo, bool) {
	info, ok := m[channel]
	return info, ok
}

type totKey struct {
	pm    int
	level int
}

type totFactors struct {
	a float64
	b float64
}

// CalibrationTables holds the TOT and velocity constants valid for a run.
type CalibrationTables struct {
	tot        map[totKey]totFactors
	velocities map[int]float64
}

func NewCalibrationTables() *CalibrationTables {
	return &CalibrationTables{
		tot:        make(map[totKey]totFactors),
		velocities: make(map[int]float64),
	}
}

func (c *CalibrationTables) SetTOTFactors(pm int, level int, a float64, b float64) {
	c.tot[totKey{pm, level}] = totFactors{a, b}
}

func (c *CalibrationTables) SetVelocity(scin int, velocity float64) {
	c.velocities[scin] = velocity
}

func (c *CalibrationTables) TOTFactors(pm int, level int) (float64, float64) {
	if c == nil {
		return 1, 0
	}
	f, ok := c.tot[totKey{pm, level}]
	if !ok {
		return 1, 0
	}
	return f.a, f.b
}

func (c *CalibrationTables) Velocity(scin int) (float64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.velocities[scin]
	return v, ok
}

type Lookups struct {
	Channels    ChannelMap
	Calibration *CalibrationTables
}

func ConnectToDatabase(driver string, user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite":
		return sqlx.Connect("sqlite", dbname)
	case "postgres":
		dbURI := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable", host, user, pass, dbname)
		return sqlx.Connect("postgres", dbURI)
	case "mysql", "":
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
		return sqlx.Connect("mysql", dbURI)
	default:
		return nil, &ErrConfig{Parameter: "db_driver", Reason: fmt.Sprintf("unsupported driver %q", driver)}
	}
}

func LoadDatabase(dbConn *sqlx.DB, runNumber int, verbosity int) (Lookups, error) {
	var lookups Lookups
	var err error
	lookups.Channels, err = getChannelsFromDB(dbConn, runNumber, verbosity)
	if err != nil {
		errMessage := fmt.Errorf("error getting channel mapping from database: %w", err)
		logger.Error(errMessage.Error())
		return lookups, errMessage
	}
	lookups.Calibration = NewCalibrationTables()
	err = getTOTCalibrationFromDB(dbConn, runNumber, verbosity, lookups.Calibration)
	if err != nil {
		errMessage := fmt.Errorf("error getting TOT calibration from database: %w", err)
		logger.Error(errMessage.Error())
		return lookups, errMessage
	}
	err = getVelocitiesFromDB(dbConn, runNumber, verbosity, lookups.Calibration)
	if err != nil {
		errMessage := fmt.Errorf("error getting velocity calibration from database: %w", err)
		logger.Error(errMessage.Error())
		return lookups, errMessage
	}
	return lookups, nil
}

type ChannelMappingEntry struct {
	Channel        int     `db:"channel"`
	PMID           int     `db:"pmid"`
	ScinID         int     `db:"scin_id"`
	Side           string  `db:"side"`
	Slot           int     `db:"slot"`
	Threshold      int     `db:"threshold"`
	ThresholdValue float64 `db:"threshold_value"`
	ScinX          float64 `db:"scin_x"`
	ScinY          float64 `db:"scin_y"`
}

type TOTCalibrationEntry struct {
	PMID      int     `db:"pmid"`
	Threshold int     `db:"threshold"`
	A         float64 `db:"a"`
	B         float64 `db:"b"`
}

type VelocityEntry struct {
	ScinID   int     `db:"scin_id"`
	Velocity float64 `db:"velocity"`
}

func getChannelsFromDB(db *sqlx.DB, runNumber int, verbosity int) (ChannelMap, error) {
	// Aliases keep the column names identical on every driver
	query := "SELECT Channel AS channel, PMID AS pmid, ScinID AS scin_id, Side AS side, Slot AS slot, " +
		"Threshold AS threshold, ThresholdValue AS threshold_value, ScinX AS scin_x, ScinY AS scin_y " +
		"FROM ChannelMapping WHERE MinRun <= ? and MaxRun >= ? ORDER BY Channel"
	if verbosity > 0 {
		logger.Info("Channel mapping read from DB", "database")
	}
	if verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s (run %d)", query, runNumber), "database")
	}

	rows, err := db.Queryx(db.Rebind(query), runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	channels := make(ChannelMap)
	for rows.Next() {
		result := ChannelMappingEntry{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		var side Side
		switch result.Side {
		case "A", "a":
			side = SideA
		case "B", "b":
			side = SideB
		default:
			logger.Warn(fmt.Sprintf("channel %d has unknown side %q, skipping", result.Channel, result.Side), "database")
			continue
		}
		channels[result.Channel] = ChannelInfo{
			PMID:           result.PMID,
			ScinID:         result.ScinID,
			Side:           side,
			Slot:           result.Slot,
			Threshold:      result.Threshold,
			ThresholdValue: result.ThresholdValue,
			ScinX:          result.ScinX,
			ScinY:          result.ScinY,
		}
	}
	return channels, rows.Err()
}

func getTOTCalibrationFromDB(db *sqlx.DB, runNumber int, verbosity int, tables *CalibrationTables) error {
	query := "SELECT PMID AS pmid, Threshold AS threshold, A AS a, B AS b " +
		"FROM TOTCalibration WHERE MinRun <= ? and MaxRun >= ?"
	if verbosity > 0 {
		logger.Info("TOT calibration read from DB", "database")
	}
	rows, err := db.Queryx(db.Rebind(query), runNumber, runNumber)
	if err != nil {
		return fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := TOTCalibrationEntry{}
		if err := rows.StructScan(&result); err != nil {
			return fmt.Errorf("error scanning DB row: %w", err)
		}
		tables.SetTOTFactors(result.PMID, result.Threshold, result.A, result.B)
	}
	return rows.Err()
}

func getVelocitiesFromDB(db *sqlx.DB, runNumber int, verbosity int, tables *CalibrationTables) error {
	query := "SELECT ScinID AS scin_id, Velocity AS velocity " +
		"FROM VelocityCalibration WHERE MinRun <= ? and MaxRun >= ?"
	if verbosity > 0 {
		logger.Info("Velocity calibration read from DB", "database")
	}
	rows, err := db.Queryx(db.Rebind(query), runNumber, runNumber)
	if err != nil {
		return fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := VelocityEntry{}
		if err := rows.StructScan(&result); err != nil {
			return fmt.Errorf("error scanning DB row: %w", err)
		}
		tables.SetVelocity(result.ScinID, result.Velocity)
	}
	return rows.Err()
}
