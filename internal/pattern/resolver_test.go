package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DateTokens(t *testing.T) {
	ref := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)

	resolved := Resolve("report-{yyyy}{mm}{dd}.csv", ref, time.UTC)
	assert.Equal(t, "report-20260223.csv", resolved)
}

func TestResolve_AllTokens(t *testing.T) {
	ref := time.Date(2026, 2, 3, 14, 5, 0, 0, time.UTC)

	cases := map[string]string{
		"{yyyy}":               "2026",
		"{yy}":                 "26",
		"{mm}":                 "02",
		"{dd}":                 "03",
		"{hh}":                 "14",
		"{mi}":                 "05",
		"{mmm}":                "Feb",
		"{ddd}":                "034",
		"exports/{yyyy}/{mm}":  "exports/2026/02",
		"plain-no-tokens.csv":  "plain-no-tokens.csv",
		"{yyyy}-{mm}-{dd}_*.*": "2026-02-03_*.*",
	}

	for template, expected := range cases {
		assert.Equal(t, expected, Resolve(template, ref, time.UTC), "template %s", template)
	}
}

func TestResolve_TimezoneShiftsDay(t *testing.T) {
	// 23:30 UTC on the 23rd is already the 24th in Auckland.
	ref := time.Date(2026, 2, 23, 23, 30, 0, 0, time.UTC)
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	assert.Equal(t, "20260223", Resolve("{yyyy}{mm}{dd}", ref, time.UTC))
	assert.Equal(t, "20260224", Resolve("{yyyy}{mm}{dd}", ref, auckland))
}

func TestResolve_Deterministic(t *testing.T) {
	ref := time.Date(2026, 7, 1, 6, 45, 0, 0, time.UTC)

	first := Resolve("in/{yyyy}/{mm}/{dd}/batch-{hh}{mi}.dat", ref, time.UTC)
	second := Resolve("in/{yyyy}/{mm}/{dd}/batch-{hh}{mi}.dat", ref, time.UTC)
	assert.Equal(t, first, second)
}

func TestResolve_NilLocationDefaultsToUTC(t *testing.T) {
	ref := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260223", Resolve("{yyyy}{mm}{dd}", ref, nil))
}

func TestValidateTemplate(t *testing.T) {
	require.NoError(t, ValidateTemplate("report-{yyyy}{mm}{dd}.csv"))
	require.NoError(t, ValidateTemplate("no tokens at all"))
	require.NoError(t, ValidateTemplate("{ddd}/{mmm}"))

	err := ValidateTemplate("report-{year}.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{year}")

	require.Error(t, ValidateTemplate("bad-{}.csv"))
}

func TestDiscoveryDay(t *testing.T) {
	ref := time.Date(2026, 2, 23, 23, 30, 0, 0, time.UTC)
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-23", DiscoveryDay(ref, time.UTC))
	assert.Equal(t, "2026-02-24", DiscoveryDay(ref, auckland))
}
