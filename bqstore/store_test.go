package bqstore

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

func TestToQueryParameters(t *testing.T) {
	params, err := toQueryParameters([]healthsync.Param{
		healthsync.StringParam("user_id", "u1"),
		healthsync.DateParam("start_date", "2025-06-13"),
		healthsync.DateArrayParam("keys", []string{"2025-06-14", "2025-06-15"}),
		{Name: "age", Kind: healthsync.ParamInt64, Value: int64(46)},
	})
	require.NoError(t, err)
	require.Len(t, params, 4)

	require.Equal(t, "user_id", params[0].Name)
	require.Equal(t, "u1", params[0].Value)

	// Date params bind as DATE, not STRING.
	require.Equal(t, civil.Date{Year: 2025, Month: 6, Day: 13}, params[1].Value)
	require.Equal(t, []civil.Date{
		{Year: 2025, Month: 6, Day: 14},
		{Year: 2025, Month: 6, Day: 15},
	}, params[2].Value)

	require.Equal(t, int64(46), params[3].Value)
}

func TestToQueryParameters_BadDate(t *testing.T) {
	_, err := toQueryParameters([]healthsync.Param{healthsync.DateParam("d", "15/06/2025")})
	require.Error(t, err)

	_, err = toQueryParameters([]healthsync.Param{healthsync.DateArrayParam("d", []string{"2025-06-15", "nope"})})
	require.Error(t, err)
}

func TestRowSaver(t *testing.T) {
	saver := &rowSaver{
		row:      healthsync.Row{"user_id": "u1", "calories": nil},
		insertID: "fp-123",
	}
	values, insertID, err := saver.Save()
	require.NoError(t, err)
	require.Equal(t, "fp-123", insertID)
	require.Equal(t, "u1", values["user_id"])
	require.Contains(t, values, "calories")
	require.Nil(t, values["calories"])
}

func TestNormalizeValue(t *testing.T) {
	require.Equal(t, "2025-06-15", normalizeValue(civil.Date{Year: 2025, Month: 6, Day: 15}))

	ts := time.Date(2025, 6, 15, 7, 30, 12, 0, time.FixedZone("JST", 9*3600))
	require.Equal(t, "2025-06-14T22:30:12Z", normalizeValue(ts))

	require.Equal(t, int64(42), normalizeValue(int64(42)))
	require.Equal(t, "text", normalizeValue("text"))
}

func TestTableRef(t *testing.T) {
	s := &Store{}
	_, err := s.tableRef("health.meals")
	require.Error(t, err)
	_, err = s.tableRef("")
	require.Error(t, err)
}
