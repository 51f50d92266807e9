package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimerfeng/TierLink/internal/registry"
)

func TestRegister_RejectsDuplicatesAndEmptyIDs(t *testing.T) {
	r := registry.New()

	require.NoError(t, r.Register(registry.Tool{ID: "weather_lookup", APIID: "api-weather"}))
	assert.Error(t, r.Register(registry.Tool{ID: "weather_lookup"}))
	assert.Error(t, r.Register(registry.Tool{}))
}

func TestAPIID(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(registry.Tool{ID: "weather_lookup", APIID: "api-weather"}))
	require.NoError(t, r.Register(registry.Tool{ID: "calculator"}))

	apiID, ok := r.APIID("weather_lookup")
	assert.True(t, ok)
	assert.Equal(t, "api-weather", apiID)

	// Known but unmetered
	apiID, ok = r.APIID("calculator")
	assert.True(t, ok)
	assert.Empty(t, apiID)

	_, ok = r.APIID("ghost")
	assert.False(t, ok)
}

func TestFromSpecs(t *testing.T) {
	r, err := registry.FromSpecs([]string{"weather_lookup:api-weather", " calculator ", ""})
	require.NoError(t, err)

	apiID, ok := r.APIID("weather_lookup")
	assert.True(t, ok)
	assert.Equal(t, "api-weather", apiID)

	apiID, ok = r.APIID("calculator")
	assert.True(t, ok)
	assert.Empty(t, apiID)

	_, err = registry.FromSpecs([]string{"dup:a", "dup:b"})
	assert.Error(t, err)
}

func TestList_OrderedByID(t *testing.T) {
	r := registry.New()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(registry.Tool{ID: id}))
	}

	tools := r.List()
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].ID)
	assert.Equal(t, "mid", tools[1].ID)
	assert.Equal(t, "zeta", tools[2].ID)
}
