package hitfinder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration_ValidateDefaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultConfiguration().Validate())
}

func TestConfiguration_ValidateReportsParameters(t *testing.T) {
	t.Parallel()
	config := DefaultConfiguration()
	config.TrailingMatch = "closest"
	config.NumWorkers = 0
	config.DBDriver = "oracle"

	err := config.Validate()
	require.Error(t, err)

	var configErr *ErrConfig
	require.True(t, errors.As(err, &configErr))

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	parameters := make([]string, 0)
	for _, e := range joined.Unwrap() {
		var paramErr *ErrConfig
		require.True(t, errors.As(e, &paramErr))
		parameters = append(parameters, paramErr.Parameter)
	}
	assert.ElementsMatch(t, []string{"trailing_match", "num_workers", "db_driver"}, parameters)
}

func TestConfiguration_ValidateCompressionRange(t *testing.T) {
	t.Parallel()
	config := DefaultConfiguration()
	config.CompressionLevel = 10

	var configErr *ErrConfig
	require.ErrorAs(t, config.Validate(), &configErr)
	assert.Equal(t, "compression_level", configErr.Parameter)
}
