package healthsync

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

const (
	testMealsTable    = "test-proj.health.meals"
	testActivityTable = "test-proj.health.fitbit_days"
	testBodyTable     = "test-proj.health.body_composition"
	testProfileTable  = "test-proj.health.profiles"
	testCalorieTable  = "test-proj.health.calorie_diff"

	testMealsCollection   = "meals"
	testProfileCollection = "profile"

	testUser = "user-1"
)

// testClock is the fixed ingestion-time clock used by every scenario.
var testClock = time.Date(2025, 6, 15, 10, 30, 45, 0, time.UTC)

func testTables() healthsync.TableConfig {
	return healthsync.TableConfig{
		Meals:             testMealsTable,
		ActivityDaily:     testActivityTable,
		BodyComposition:   testBodyTable,
		Profiles:          testProfileTable,
		CalorieDiff:       testCalorieTable,
		MealsCollection:   testMealsCollection,
		ProfileCollection: testProfileCollection,
	}
}

func newTestService(t *testing.T, docs healthsync.DocumentStore, analytical healthsync.AnalyticalStore) *healthsync.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := healthsync.NewService(docs, analytical, &healthsync.ServiceConfig{
		AppName: "healthsync-test",
		Tables:  testTables(),
		Clock:   func() time.Time { return testClock },
	}, logger)
	require.NoError(t, err)
	return svc
}

func floatPtr(v float64) *float64 {
	return &v
}
