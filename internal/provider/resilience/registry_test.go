package resilience_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/provider/resilience"
)

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("openmeteo")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	health := registry.GetHealth("openmeteo")
	require.NotNil(t, health)
	assert.Equal(t, "openmeteo", client.Name())
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
	assert.Equal(t, resilience.StatusOK, registry.Overall())
}

func TestRegistry_RecordFailure(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("openmeteo", resilience.NewClient(resilience.DefaultClientConfig("openmeteo")))

	registry.RecordFailure("openmeteo", errors.New("connection refused"))

	health := registry.GetHealth("openmeteo")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "connection refused", health.LastError)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("x"))
	assert.Nil(t, registry.GetHealth("missing"))
	assert.Empty(t, registry.GetAllHealth())
	assert.Equal(t, resilience.StatusOK, registry.Overall())
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"openmeteo-aq", "openmeteo", "archive"} {
		registry.Register(name, resilience.NewClient(resilience.DefaultClientConfig(name)))
	}

	all := registry.GetAllHealth()
	require.Len(t, all, 3)
	assert.Equal(t, "archive", all[0].Name)
	assert.Equal(t, "openmeteo", all[1].Name)
	assert.Equal(t, "openmeteo-aq", all[2].Name)
}

func TestProviderHealth_States(t *testing.T) {
	open := &resilience.ProviderHealth{CircuitState: gobreaker.StateOpen}
	half := &resilience.ProviderHealth{CircuitState: gobreaker.StateHalfOpen}
	assert.True(t, open.IsUnhealthy())
	assert.True(t, half.IsDegraded())
	assert.False(t, half.IsHealthy())
}
