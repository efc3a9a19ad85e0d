package healthsync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validationService(t *testing.T, maxTextLen int) *Service {
	t.Helper()
	svc, err := NewService(nil, nil, &ServiceConfig{MaxTextLen: maxTextLen}, nil)
	require.NoError(t, err)
	return svc
}

func TestValidateEvent(t *testing.T) {
	svc := validationService(t, 0)

	cases := []struct {
		name string
		rec  EventRecord
		want []string
	}{
		{
			name: "valid",
			rec:  EventRecord{UserID: "u", OccurredAt: "2025-06-15T09:00:00+09:00", Text: "ok"},
		},
		{
			name: "missing_user",
			rec:  EventRecord{OccurredAt: "2025-06-15T09:00:00+09:00", Text: "ok"},
			want: []string{"missing required field: user_id"},
		},
		{
			name: "missing_occurred_at",
			rec:  EventRecord{UserID: "u", Text: "ok"},
			want: []string{"missing required field: occurred_at"},
		},
		{
			name: "missing_text",
			rec:  EventRecord{UserID: "u", OccurredAt: "2025-06-15T09:00:00+09:00"},
			want: []string{"missing required field: text"},
		},
		{
			name: "bad_date_prefix",
			rec:  EventRecord{UserID: "u", OccurredAt: "15/06/2025 09:00", Text: "ok"},
			want: []string{"occurred_at must begin with a YYYY-MM-DD date"},
		},
		{
			name: "whitespace_only_text",
			rec:  EventRecord{UserID: "u", OccurredAt: "2025-06-15T09:00:00+09:00", Text: "   "},
			want: []string{"missing required field: text"},
		},
		{
			name: "everything_missing",
			rec:  EventRecord{},
			want: []string{
				"missing required field: user_id",
				"missing required field: occurred_at",
				"missing required field: text",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, svc.validateEvent(&tc.rec))
		})
	}
}

func TestValidateEvent_TextLengthCountsRunes(t *testing.T) {
	svc := validationService(t, 10)

	rec := EventRecord{UserID: "u", OccurredAt: "2025-06-15T09:00:00+09:00", Text: strings.Repeat("あ", 10)}
	require.Empty(t, svc.validateEvent(&rec))

	rec.Text = strings.Repeat("あ", 11)
	violations := svc.validateEvent(&rec)
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "text is too long")
}

func TestValidateEvent_DefaultTextLimit(t *testing.T) {
	svc := validationService(t, 0)

	rec := EventRecord{UserID: "u", OccurredAt: "2025-06-15T09:00:00+09:00", Text: strings.Repeat("x", DefaultMaxTextLen)}
	require.Empty(t, svc.validateEvent(&rec))

	rec.Text += "x"
	require.Len(t, svc.validateEvent(&rec), 1)
}

func TestHasDatePrefix(t *testing.T) {
	require.True(t, hasDatePrefix("2025-06-15T09:00:00+09:00"))
	require.True(t, hasDatePrefix("2025-06-15"))
	require.False(t, hasDatePrefix("2025-6-15"))
	require.False(t, hasDatePrefix("2025-13-01T00:00:00Z"))
	require.False(t, hasDatePrefix("junk"))
	require.False(t, hasDatePrefix(""))
}

func TestOccurredDateOf(t *testing.T) {
	now := time.Date(2025, 6, 15, 23, 0, 0, 0, time.FixedZone("JST", 9*3600))
	require.Equal(t, "2025-06-15", OccurredDateOf("2025-06-15T09:12:33+09:00", now))
	require.Equal(t, "2025-06-15", OccurredDateOf("", now))
	// Short inputs pass through unchanged; validation catches them upstream.
	require.Equal(t, "2025", OccurredDateOf("2025", now))
}
