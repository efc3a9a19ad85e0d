// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"context"
	"time"
)

// EventSummary is the document-store view of one event for range reads.
type EventSummary struct {
	Text       string   `json:"text"`
	Calories   *float64 `json:"calories,omitempty"`
	OccurredAt string   `json:"occurred_at"`
	Source     string   `json:"source,omitempty"`
}

// EventStats summarizes a user's recent events.
type EventStats struct {
	PeriodDays         int     `json:"period_days"`
	TotalEvents        int     `json:"total_events"`
	AvgEventsPerDay    float64 `json:"avg_events_per_day"`
	TotalCalories      float64 `json:"total_calories"`
	AvgCaloriesPerItem float64 `json:"avg_calories_per_item"`
	AvgCaloriesPerDay  float64 `json:"avg_calories_per_day"`
	ItemsWithCalories  int     `json:"items_with_calories"`
	CaloriesCoverage   float64 `json:"calories_coverage"`
}

// DailyCalories is one day on the calorie intake axis.
type DailyCalories struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// WeightPoint is the latest body measurement of one day.
type WeightPoint struct {
	Date          string   `json:"date"`
	WeightKg      *float64 `json:"weight_kg"`
	FatPercentage *float64 `json:"fat_percentage"`
}

// CalorieBalanceDay is one day of the derived calorie balance series.
type CalorieBalanceDay struct {
	Date                string  `json:"date"`
	TakeInCalories      float64 `json:"take_in_calories"`
	ConsumptionCalories float64 `json:"consumption_calories"`
	WeightChangeKg      float64 `json:"weight_change_kg"`
}

// EventsLastNDays returns the user's events from the last n days, grouped by
// occurred_date, from the document store.
func (s *Service) EventsLastNDays(ctx context.Context, userID string, n int) (map[string][]EventSummary, error) {
	if s.docs == nil {
		return nil, ErrStoreUnavailable
	}
	if n < 1 {
		n = 1
	}

	today := s.now().Local()
	start := today.AddDate(0, 0, -(n - 1)).Format(dateLayout)
	end := today.Format(dateLayout)

	docs, err := s.docs.QueryRange(ctx, s.config.Tables.MealsCollection, userID, "occurred_date", start, end)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]EventSummary)
	for _, doc := range docs {
		key := stringAttr(doc, "occurred_date")
		if key == "" {
			key = OccurredDateOf(stringAttr(doc, "occurred_at"), s.now())
		}
		summary := EventSummary{
			Text:       stringAttr(doc, "text"),
			OccurredAt: stringAttr(doc, "occurred_at"),
			Source:     stringAttr(doc, "source"),
		}
		if cal, ok := floatAttr(doc, "calories"); ok {
			summary.Calories = &cal
		}
		result[key] = append(result[key], summary)
	}
	return result, nil
}

// StatsLastNDays computes summary statistics over the user's recent events.
func (s *Service) StatsLastNDays(ctx context.Context, userID string, n int) (*EventStats, error) {
	byDate, err := s.EventsLastNDays(ctx, userID, n)
	if err != nil {
		return nil, err
	}

	stats := &EventStats{PeriodDays: n}
	for _, events := range byDate {
		stats.TotalEvents += len(events)
		for _, e := range events {
			if e.Calories != nil {
				stats.TotalCalories += *e.Calories
				stats.ItemsWithCalories++
			}
		}
	}

	days := len(byDate)
	if days > 0 {
		stats.AvgEventsPerDay = float64(stats.TotalEvents) / float64(days)
		stats.AvgCaloriesPerDay = stats.TotalCalories / float64(days)
	}
	if stats.ItemsWithCalories > 0 {
		stats.AvgCaloriesPerItem = stats.TotalCalories / float64(stats.ItemsWithCalories)
	}
	if stats.TotalEvents > 0 {
		stats.CaloriesCoverage = float64(stats.ItemsWithCalories) / float64(stats.TotalEvents)
	}
	return stats, nil
}

// EventCaloriesByDate sums event calories per day over an inclusive date
// range, covering every date on the axis. The primary query selects the
// current image_base64 column; stores that predate that migration answer
// through the fallback, which derives it from the old blob column.
func (s *Service) EventCaloriesByDate(ctx context.Context, userID, startDate, endDate string) ([]DailyCalories, error) {
	if s.analytical == nil {
		return nil, ErrStoreUnavailable
	}

	table := s.config.Tables.Meals
	primary := `
		SELECT occurred_date, calories, image_base64
		FROM ` + "`" + table + "`" + `
		WHERE user_id = @user_id
		  AND occurred_date BETWEEN @start_date AND @end_date
		ORDER BY occurred_date DESC`
	fallback := `
		SELECT occurred_date, calories, TO_BASE64(image_blob) AS image_base64
		FROM ` + "`" + table + "`" + `
		WHERE user_id = @user_id
		  AND occurred_date BETWEEN @start_date AND @end_date
		ORDER BY occurred_date DESC`

	rows, err := s.analytical.QueryWithFallback(ctx, primary, fallback, []Param{
		StringParam("user_id", userID),
		DateParam("start_date", startDate),
		DateParam("end_date", endDate),
	})
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for _, row := range rows {
		date := dateString(row["occurred_date"])
		if date == "" {
			continue
		}
		// Zero-calorie entries count; only NULL is ignored.
		if cal, ok := floatAttr(row, "calories"); ok {
			totals[date] += cal
		}
	}

	dates, err := dateAxis(startDate, endDate)
	if err != nil {
		return nil, err
	}
	out := make([]DailyCalories, 0, len(dates))
	for _, d := range dates {
		out = append(out, DailyCalories{Date: d, Total: totals[d]})
	}
	return out, nil
}

// WeightTrend returns the latest weight and fat-percentage reading of each
// day in the range, using a window over the measurement timestamps.
func (s *Service) WeightTrend(ctx context.Context, userID, startDate, endDate string) ([]WeightPoint, error) {
	if s.analytical == nil {
		return nil, ErrStoreUnavailable
	}

	sql := `
		SELECT date, weight AS weight_kg, fat_percentage
		FROM (
			SELECT
				DATE(measured_at) AS date,
				weight,
				fat_percentage,
				ROW_NUMBER() OVER(PARTITION BY DATE(measured_at) ORDER BY measured_at DESC) AS rn
			FROM ` + "`" + s.config.Tables.BodyComposition + "`" + `
			WHERE user_id = @user_id
			  AND DATE(measured_at) BETWEEN @start_date AND @end_date
		)
		WHERE rn = 1
		ORDER BY date ASC`

	rows, err := s.analytical.Query(ctx, sql, []Param{
		StringParam("user_id", userID),
		DateParam("start_date", startDate),
		DateParam("end_date", endDate),
	})
	if err != nil {
		return nil, err
	}

	out := make([]WeightPoint, 0, len(rows))
	for _, row := range rows {
		p := WeightPoint{Date: dateString(row["date"])}
		if w, ok := floatAttr(row, "weight_kg"); ok {
			p.WeightKg = &w
		}
		if f, ok := floatAttr(row, "fat_percentage"); ok {
			p.FatPercentage = &f
		}
		out = append(out, p)
	}
	return out, nil
}

// ActivityRange returns the stored daily device metrics over an inclusive
// date range.
func (s *Service) ActivityRange(ctx context.Context, userID, startDate, endDate string) ([]ActivityDay, error) {
	if s.analytical == nil {
		return nil, ErrStoreUnavailable
	}

	sql := `
		SELECT date, steps_total, calories_total, sleep_line, spo2_line
		FROM ` + "`" + s.config.Tables.ActivityDaily + "`" + `
		WHERE user_id = @user_id
		  AND date BETWEEN @start_date AND @end_date
		ORDER BY date ASC`

	rows, err := s.analytical.Query(ctx, sql, []Param{
		StringParam("user_id", userID),
		DateParam("start_date", startDate),
		DateParam("end_date", endDate),
	})
	if err != nil {
		return nil, err
	}

	out := make([]ActivityDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, ActivityDay{
			Date:          dateString(row["date"]),
			StepsTotal:    asInt64(row["steps_total"]),
			CaloriesTotal: asInt64(row["calories_total"]),
			SleepLine:     stringAttr(row, "sleep_line"),
			SpO2Line:      stringAttr(row, "spo2_line"),
		})
	}
	return out, nil
}

// CalorieBalance aggregates the derived calorie-diff table per day,
// collapsing duplicate rows by summing intake/consumption and averaging the
// weight change.
func (s *Service) CalorieBalance(ctx context.Context, userID, startDate, endDate string) ([]CalorieBalanceDay, error) {
	if s.analytical == nil {
		return nil, ErrStoreUnavailable
	}

	sql := `
		SELECT
			date,
			SUM(take_in_calories) AS take_in_calories,
			SUM(consumption_calories) AS consumption_calories,
			AVG(weight_change_kg) AS weight_change_kg
		FROM ` + "`" + s.config.Tables.CalorieDiff + "`" + `
		WHERE user_id = @user_id
		  AND date BETWEEN @start_date AND @end_date
		GROUP BY date
		ORDER BY date ASC`

	rows, err := s.analytical.Query(ctx, sql, []Param{
		StringParam("user_id", userID),
		DateParam("start_date", startDate),
		DateParam("end_date", endDate),
	})
	if err != nil {
		return nil, err
	}

	out := make([]CalorieBalanceDay, 0, len(rows))
	for _, row := range rows {
		day := CalorieBalanceDay{Date: dateString(row["date"])}
		if v, ok := floatAttr(row, "take_in_calories"); ok {
			day.TakeInCalories = v
		}
		if v, ok := floatAttr(row, "consumption_calories"); ok {
			day.ConsumptionCalories = v
		}
		if v, ok := floatAttr(row, "weight_change_kg"); ok {
			day.WeightChangeKg = v
		}
		out = append(out, day)
	}
	return out, nil
}

// dateAxis lists every date from start to end inclusive.
func dateAxis(startDate, endDate string) ([]string, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out, nil
}

// dateString renders an analytical date value as "YYYY-MM-DD". Adapters
// normalize civil dates to strings; time values format explicitly.
func dateString(v any) string {
	switch d := v.(type) {
	case string:
		if len(d) >= len(dateLayout) {
			return d[:len(dateLayout)]
		}
		return d
	case time.Time:
		return d.Format(dateLayout)
	default:
		return ""
	}
}

func floatAttr(row Row, key string) (float64, bool) {
	switch n := row[key].(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
