package hitfinder

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE ChannelMapping (
	Channel INTEGER, PMID INTEGER, ScinID INTEGER, Side TEXT, Slot INTEGER,
	Threshold INTEGER, ThresholdValue REAL, ScinX REAL, ScinY REAL,
	MinRun INTEGER, MaxRun INTEGER);
CREATE TABLE TOTCalibration (
	PMID INTEGER, Threshold INTEGER, A REAL, B REAL, MinRun INTEGER, MaxRun INTEGER);
CREATE TABLE VelocityCalibration (
	ScinID INTEGER, Velocity REAL, MinRun INTEGER, MaxRun INTEGER);

INSERT INTO ChannelMapping VALUES
	(100, 1, 10, 'A', 1, 1, 80.0, 42.5, 0.0, 0, 999),
	(101, 1, 10, 'A', 1, 2, 20.0, 42.5, 0.0, 0, 999),
	(102, 2, 10, 'B', 1, 1, 20.0, 42.5, 0.0, 0, 999),
	(103, 2, 10, 'B', 1, 2, 80.0, 42.5, 0.0, 0, 999),
	(104, 3, 11, 'X', 1, 1, 20.0, 42.5, 0.0, 0, 999),
	(100, 9, 19, 'A', 1, 1, 80.0, 0.0, 0.0, 1000, 2000);
INSERT INTO TOTCalibration VALUES
	(1, 1, 1.5, 10.0, 0, 999),
	(1, 1, 9.0, 99.0, 1000, 2000);
INSERT INTO VelocityCalibration VALUES
	(10, 12.6, 0, 999);
`

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := ConnectToDatabase("sqlite", "", "", "", filepath.Join(t.TempDir(), "calib.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func TestLoadDatabase(t *testing.T) {
	logs := captureLogs(t)
	db := newTestDB(t)

	lookups, err := LoadDatabase(db, 42, 0)
	require.NoError(t, err)

	assert.Len(t, lookups.Channels, 4)
	info, ok := lookups.Channels.Resolve(103)
	require.True(t, ok)
	assert.Equal(t, ChannelInfo{
		PMID: 2, ScinID: 10, Side: SideB, Slot: 1, Threshold: 2,
		ThresholdValue: 80, ScinX: 42.5, ScinY: 0,
	}, info)
	_, ok = lookups.Channels.Resolve(104)
	assert.False(t, ok, "unknown side is skipped")
	assert.Len(t, logs.warns, 1)

	a, b := lookups.Calibration.TOTFactors(1, 1)
	assert.Equal(t, 1.5, a)
	assert.Equal(t, 10.0, b)
	a, b = lookups.Calibration.TOTFactors(1, 2)
	assert.Equal(t, 1.0, a)
	assert.Equal(t, 0.0, b)

	v, ok := lookups.Calibration.Velocity(10)
	require.True(t, ok)
	assert.Equal(t, 12.6, v)
	_, ok = lookups.Calibration.Velocity(11)
	assert.False(t, ok)
}

func TestLoadDatabase_RunRange(t *testing.T) {
	db := newTestDB(t)

	lookups, err := LoadDatabase(db, 1500, 0)
	require.NoError(t, err)

	info, ok := lookups.Channels.Resolve(100)
	require.True(t, ok)
	assert.Equal(t, 9, info.PMID)
	a, _ := lookups.Calibration.TOTFactors(1, 1)
	assert.Equal(t, 9.0, a)
}

func TestLoadDatabase_FeedsThresholdOrders(t *testing.T) {
	db := newTestDB(t)

	lookups, err := LoadDatabase(db, 42, 0)
	require.NoError(t, err)
	orderings := FindThresholdOrders(lookups.Channels)

	assert.Equal(t, []int{1, 0}, orderings[1])
	assert.Equal(t, []int{0, 1}, orderings[2])
}

func TestLoadDatabase_MissingTables(t *testing.T) {
	captureLogs(t)
	db, err := ConnectToDatabase("sqlite", "", "", "", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = LoadDatabase(db, 1, 0)
	assert.Error(t, err)
}

func TestConnectToDatabase_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := ConnectToDatabase("oracle", "", "", "", "")
	var cfgErr *ErrConfig
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "db_driver", cfgErr.Parameter)
}

func TestCalibrationTables_NilIsNeutral(t *testing.T) {
	t.Parallel()
	var tables *CalibrationTables

	a, b := tables.TOTFactors(1, 1)
	assert.Equal(t, 1.0, a)
	assert.Equal(t, 0.0, b)
	_, ok := tables.Velocity(1)
	assert.False(t, ok)
}
