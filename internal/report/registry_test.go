package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefaults(t *testing.T) {
	reg := NewRegistry(nil)
	for name, want := range map[string]int64{
		"Demand-Vs-Collection":           37,
		"Disbursal-Vs-Awaitingdisbursal": 38,
		"Client-Trends-By-Day":           2000,
		"Client-Trends-By-Month":         2002,
		"Loan-Trends-By-Week":            2004,
	} {
		id, err := reg.ID(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, id, name)
	}
	_, err := reg.ID("Nope")
	require.ErrorIs(t, err, ErrUnknownReport)
	assert.Len(t, reg.Names(), 8)
}

func TestParseOverrides(t *testing.T) {
	overrides, err := ParseOverrides(" Loan-Trends-By-Day=3003 , Custom=9,")
	require.NoError(t, err)
	reg := NewRegistry(overrides)

	id, err := reg.ID("Loan-Trends-By-Day")
	require.NoError(t, err)
	assert.Equal(t, int64(3003), id)
	id, err = reg.ID("Custom")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	_, err = ParseOverrides("Broken")
	require.Error(t, err)
	_, err = ParseOverrides("X=abc")
	require.Error(t, err)
}
