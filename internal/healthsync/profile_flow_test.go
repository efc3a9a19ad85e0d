package healthsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

func seedProfileDoc(docs *FakeDocumentStore, attrs healthsync.Row) {
	docs.Seed(testProfileCollection, testUser, "latest", attrs)
}

func TestUpsertProfile_InsertsWhenNoAnalyticalRow(t *testing.T) {
	ctx := context.Background()
	docs := NewFakeDocumentStore()
	analytical := NewFakeAnalyticalStore()
	svc := newTestService(t, docs, analytical)

	seedProfileDoc(docs, healthsync.Row{
		"age":          float64(46), // JSON numbers decode as float64
		"sex":          "female",
		"height_cm":    float64(162.5),
		"weight_kg":    float64(58.2),
		"goal":         "lose weight",
		"past_history": []any{"hypertension", "asthma"},
		"updated_at":   "2025-06-15T08:00:00Z",
	})
	analytical.ScriptQuery([]healthsync.Row{{"count": int64(0)}}, nil)

	res, err := svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, healthsync.MethodInsert, res.Method)

	rows := analytical.Rows(testProfileTable)
	require.Len(t, rows, 1)
	require.Equal(t, testUser, rows[0]["user_id"])
	require.Equal(t, int64(46), rows[0]["age"])
	require.Equal(t, "female", rows[0]["sex"])
	require.Equal(t, "hypertension,asthma", rows[0]["past_history"])
	require.Equal(t, "2025-06-15T08:00:00Z", rows[0]["updated_at"])
	// Unset attributes stay NULL instead of getting sentinel values.
	require.Nil(t, rows[0]["target_weight_kg"])
	require.Nil(t, rows[0]["notes"])
}

func TestUpsertProfile_UpdatesOnlyProvidedFields(t *testing.T) {
	ctx := context.Background()
	docs := NewFakeDocumentStore()
	analytical := NewFakeAnalyticalStore()
	analytical.ExecAffected = 1
	svc := newTestService(t, docs, analytical)

	seedProfileDoc(docs, healthsync.Row{
		"weight_kg":  float64(57.9),
		"updated_at": "2025-06-15T09:30:00Z",
	})
	analytical.ScriptQuery([]healthsync.Row{{"count": int64(1)}}, nil)

	res, err := svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, healthsync.MethodUpdate, res.Method)
	require.Equal(t, 2, res.UpdatedFields) // weight_kg + updated_at
	require.Equal(t, int64(1), res.UpdatedRows)

	require.Len(t, analytical.ExecLog, 1)
	update := analytical.ExecLog[0]
	require.Contains(t, update.SQL, "UPDATE")
	require.Contains(t, update.SQL, "weight_kg = @param_0")
	require.Contains(t, update.SQL, "updated_at = TIMESTAMP(@param_1)")
	require.NotContains(t, update.SQL, "sex =")
	require.Contains(t, update.SQL, "WHERE user_id = @user_id")

	// Values travel as typed parameters, never inline.
	require.Equal(t, "param_0", update.Params[0].Name)
	require.Equal(t, float64(57.9), update.Params[0].Value)
	require.Equal(t, "param_1", update.Params[1].Name)
	require.Equal(t, "2025-06-15T09:30:00Z", update.Params[1].Value)
}

func TestUpsertProfile_NoDocument(t *testing.T) {
	ctx := context.Background()
	docs := NewFakeDocumentStore()
	analytical := NewFakeAnalyticalStore()
	svc := newTestService(t, docs, analytical)

	res, err := svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "no profile document", res.Reason)
	require.Equal(t, 0, analytical.InsertCalls)
	require.Empty(t, analytical.ExecLog)
}

func TestUpsertProfile_StoresMissing(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(t, nil, NewFakeAnalyticalStore())
	res, err := svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "document store unavailable", res.Reason)

	svc = newTestService(t, NewFakeDocumentStore(), nil)
	res, err = svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "analytical store unavailable", res.Reason)
}

func TestUpsertProfile_BadTimestampFallsBackToClock(t *testing.T) {
	ctx := context.Background()
	docs := NewFakeDocumentStore()
	analytical := NewFakeAnalyticalStore()
	svc := newTestService(t, docs, analytical)

	seedProfileDoc(docs, healthsync.Row{
		"age":        float64(30),
		"updated_at": "not-a-timestamp",
	})
	analytical.ScriptQuery([]healthsync.Row{{"count": int64(0)}}, nil)

	res, err := svc.UpsertProfile(ctx, testUser)
	require.NoError(t, err)
	require.True(t, res.OK)

	rows := analytical.Rows(testProfileTable)
	require.Len(t, rows, 1)
	// Unparseable updated_at falls back to the merge-time clock.
	require.Equal(t, "2025-06-15T10:30:45Z", rows[0]["updated_at"])
}
