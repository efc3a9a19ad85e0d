package healthsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivityDaysFromReadings(t *testing.T) {
	readings := []ActivityReading{
		{Date: "2025-06-14", StepsTotal: "8200", CaloriesTotal: "2100.7", SleepLine: "6h50m", SpO2Line: "97%"},
		{Date: "2025-06-15", StepsTotal: "abc", CaloriesTotal: ""},
		{Date: ""}, // no date key, dropped
	}

	days := ActivityDaysFromReadings(readings)
	require.Len(t, days, 2)
	require.Equal(t, int64(8200), days[0].StepsTotal)
	// Float-formatted totals truncate toward zero.
	require.Equal(t, int64(2100), days[0].CaloriesTotal)
	// Unparseable device values coerce to zero, never reject the day.
	require.Equal(t, int64(0), days[1].StepsTotal)
	require.Equal(t, int64(0), days[1].CaloriesTotal)
}

func TestBodyMeasurementsFromReadings_MergesByTimestamp(t *testing.T) {
	readings := []ScaleReading{
		{Timestamp: "20250615073012", Tag: "6021", Value: "68.4"},
		{Timestamp: "20250615073012", Tag: "6022", Value: "21.7"},
		{Timestamp: "20250614072940", Tag: "6021", Value: "68.9"},
	}

	out := BodyMeasurementsFromReadings(readings)
	require.Len(t, out, 2)

	// Output is sorted by timestamp.
	require.Equal(t, "2025-06-14T07:29:40", out[0].MeasuredAt)
	require.Equal(t, 68.9, *out[0].WeightKg)
	require.Nil(t, out[0].FatPercentage)

	require.Equal(t, "2025-06-15T07:30:12", out[1].MeasuredAt)
	require.Equal(t, 68.4, *out[1].WeightKg)
	require.Equal(t, 21.7, *out[1].FatPercentage)

	// Raw preserves the source readings for the merged row.
	var raw []ScaleReading
	require.NoError(t, json.Unmarshal([]byte(out[1].Raw), &raw))
	require.Len(t, raw, 2)
}

func TestBodyMeasurementsFromReadings_SkipsUnusable(t *testing.T) {
	readings := []ScaleReading{
		{Timestamp: "", Tag: "6021", Value: "68.4"},
		{Timestamp: "20250615073012", Tag: "6021", Value: ""},
		{Timestamp: "not-a-time", Tag: "6021", Value: "68.4"},
		{Timestamp: "20250615073012", Tag: "6021", Value: "NaN?"},
		{Timestamp: "20250615073012", Tag: "9999", Value: "1.0"}, // unknown metric tag
	}
	require.Empty(t, BodyMeasurementsFromReadings(readings))
}

func TestBodyMeasurementsFromReadings_UnknownTagDoesNotDropRow(t *testing.T) {
	readings := []ScaleReading{
		{Timestamp: "20250615073012", Tag: "6021", Value: "68.4"},
		{Timestamp: "20250615073012", Tag: "9999", Value: "1.0"},
	}
	out := BodyMeasurementsFromReadings(readings)
	require.Len(t, out, 1)
	require.Equal(t, 68.4, *out[0].WeightKg)
}

func TestMergeBodyMeasurements(t *testing.T) {
	w := 68.4
	f := 21.7
	merged := mergeBodyMeasurements([]BodyMeasurement{
		{MeasuredAt: "2025-06-15T07:30:12", WeightKg: &w},
		{MeasuredAt: "2025-06-15T07:30:12", FatPercentage: &f},
		{MeasuredAt: ""},
	})
	require.Len(t, merged, 1)
	require.Equal(t, w, *merged[0].WeightKg)
	require.Equal(t, f, *merged[0].FatPercentage)
}

func TestCoerceInt(t *testing.T) {
	require.Equal(t, int64(0), coerceInt(""))
	require.Equal(t, int64(0), coerceInt("n/a"))
	require.Equal(t, int64(42), coerceInt("42"))
	require.Equal(t, int64(42), coerceInt("42.9"))
	require.Equal(t, int64(-3), coerceInt("-3.2"))
}
