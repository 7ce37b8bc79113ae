package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/logger"
)

func TestOpenDefaultsToMemory(t *testing.T) {
	s, err := Open(context.Background(), config.DatabaseConfig{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, s.Backend)
	assert.NotNil(t, s.Users)
	assert.NotNil(t, s.Plans)
	assert.NotNil(t, s.Workouts)
	assert.NoError(t, s.Close())
}

func TestMemoryStoresAreIndependent(t *testing.T) {
	a, b := NewMemoryStores(), NewMemoryStores()
	assert.NotSame(t, a.Plans, b.Plans)
	assert.NotSame(t, a.Workouts, b.Workouts)
}

func TestNilStoresClose(t *testing.T) {
	var s *Stores
	assert.NoError(t, s.Close())
}
