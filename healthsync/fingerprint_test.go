package healthsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseRecord() EventRecord {
	return EventRecord{
		UserID:       "user-1",
		OccurredAt:   "2025-06-15T09:12:33+09:00",
		OccurredDate: "2025-06-15",
		Text:         "grilled salmon",
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := baseRecord()
	b := baseRecord()
	fpA := Fingerprint(&a)
	require.Len(t, fpA, 64)
	require.Equal(t, fpA, Fingerprint(&b))
}

func TestFingerprint_AbsentEqualsEmpty(t *testing.T) {
	a := baseRecord()
	b := baseRecord()
	b.ContentDigest = ""
	b.NoteDigest = ""
	require.Equal(t, Fingerprint(&a), Fingerprint(&b))
}

func TestFingerprint_SensitiveFields(t *testing.T) {
	base := Fingerprint(ptr(baseRecord()))

	cases := []struct {
		name   string
		mutate func(*EventRecord)
	}{
		{"user_id", func(r *EventRecord) { r.UserID = "user-2" }},
		{"occurred_date", func(r *EventRecord) { r.OccurredDate = "2025-06-16" }},
		{"occurred_minute", func(r *EventRecord) { r.OccurredAt = "2025-06-15T09:13:33+09:00" }},
		{"text", func(r *EventRecord) { r.Text = "grilled mackerel" }},
		{"content_digest", func(r *EventRecord) { r.ContentDigest = "deadbeef" }},
		{"note_digest", func(r *EventRecord) { r.NoteDigest = "cafef00d" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := baseRecord()
			tc.mutate(&rec)
			require.NotEqual(t, base, Fingerprint(&rec))
		})
	}
}

func TestFingerprint_VolatileFieldsExcluded(t *testing.T) {
	base := Fingerprint(ptr(baseRecord()))

	rec := baseRecord()
	rec.FileName = "IMG_0042.jpg"
	rec.Mime = "image/jpeg"
	rec.CreatedAt = "2025-06-15T10:30:45Z"
	rec.Calories = ptrFloat(520)
	rec.Category = "dinner"
	rec.Source = "image"
	require.Equal(t, base, Fingerprint(&rec))
}

func TestFingerprint_SecondsTruncated(t *testing.T) {
	a := baseRecord()
	b := baseRecord()
	b.OccurredAt = "2025-06-15T09:12:59+09:00"
	require.Equal(t, Fingerprint(&a), Fingerprint(&b))
}

func TestFingerprint_NonASCIITextStable(t *testing.T) {
	a := baseRecord()
	a.Text = "焼き鮭と<ご飯>"
	b := baseRecord()
	b.Text = "焼き鮭と<ご飯>"
	require.Equal(t, Fingerprint(&a), Fingerprint(&b))
	require.NotEqual(t, Fingerprint(&a), Fingerprint(ptr(baseRecord())))
}

func TestFingerprintRow_MealMatchesRecord(t *testing.T) {
	rec := baseRecord()
	row := Row{
		"user_id":       rec.UserID,
		"occurred_at":   rec.OccurredAt,
		"occurred_date": rec.OccurredDate,
		"text":          rec.Text,
		"ingested_at":   "2025-06-15T10:30:45Z", // volatile, ignored
	}
	require.Equal(t, Fingerprint(&rec), FingerprintRow(ClassMeal, row))
}

func TestFingerprintRow_OtherClassesIgnoreVolatile(t *testing.T) {
	row := Row{"user_id": "user-1", "date": "2025-06-15", "steps_total": int64(100)}
	withVolatile := Row{"user_id": "user-1", "date": "2025-06-15", "steps_total": int64(100), "ingested_at": "x"}
	require.Equal(t,
		FingerprintRow(ClassActivityDaily, row),
		FingerprintRow(ClassActivityDaily, withVolatile))
}

func TestTruncateToMinute(t *testing.T) {
	require.Equal(t, "2025-06-15T09:12", truncateToMinute("2025-06-15T09:12:33+09:00"))
	require.Equal(t, "2025-06-15T09:12", truncateToMinute("2025-06-15T09:12"))
	require.Equal(t, "", truncateToMinute(""))
}

func ptr(r EventRecord) *EventRecord { return &r }

func ptrFloat(v float64) *float64 { return &v }
