package services

import (
	"context"
	"testing"
	"time"

	"ourapp-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day string, hour int) time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func freeze(d *device, t time.Time) {
	d.daily.now = func() time.Time { return t }
	d.pairs.now = func() time.Time { return t }
}

// pairedDevice signs up Alice and Bob and pairs them, returning Alice's session
func pairedDevice(t *testing.T) (*device, string) {
	t.Helper()
	ctx := context.Background()
	d := newDevice(nil)
	fixedCodes(d.pairs, "K7H3PQ")
	a := signup(t, d, "Alice")
	b := signup(t, d, "Bob")

	_, err := d.pairs.IssueCode(ctx, a)
	require.NoError(t, err)
	_, err = d.pairs.JoinByCode(ctx, b, "K7H3PQ")
	require.NoError(t, err)
	_, err = d.pairs.RefreshPairing(ctx, a)
	require.NoError(t, err)
	return d, a
}

func TestDailyService_PromptFor(t *testing.T) {
	d := newDevice(nil)

	assert.Equal(t, Prompts[0], d.daily.PromptFor(at("1970-01-01", 0)))
	assert.Equal(t, Prompts[1], d.daily.PromptFor(at("1970-01-02", 23)))
	assert.Equal(t, Prompts[0], d.daily.PromptFor(at("1970-01-21", 12)))

	morning := d.daily.PromptFor(at("2026-10-15", 1))
	evening := d.daily.PromptFor(at("2026-10-15", 23))
	assert.Equal(t, morning, evening)
	assert.NotEqual(t, morning, d.daily.PromptFor(at("2026-10-16", 1)))
}

func TestDailyService_PromptFollowsLocalCalendar(t *testing.T) {
	d := newDevice(nil)
	tokyo := time.FixedZone("JST", 9*60*60)
	d.daily.loc = tokyo

	// 20:00 UTC on the 1st is already the 2nd in Tokyo
	assert.Equal(t, Prompts[1], d.daily.PromptFor(at("1970-01-01", 20)))
	assert.Equal(t, "1970-01-02", d.daily.DayKey(at("1970-01-01", 20)))
}

func TestDailyService_CurrentStreak(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		days []string
		want int
	}{
		{name: "empty", want: 0},
		{name: "only today", days: []string{"2026-10-15"}, want: 1},
		{name: "yesterday and today", days: []string{"2026-10-13", "2026-10-14", "2026-10-15"}, want: 3},
		{name: "gap before yesterday", days: []string{"2026-10-12", "2026-10-14", "2026-10-15"}, want: 2},
		{name: "missed today", days: []string{"2026-10-13", "2026-10-14"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(nil)
			freeze(d, at("2026-10-15", 10))
			for _, day := range tt.days {
				require.NoError(t, d.journal.MarkStreakDay(ctx, "s1", day))
			}

			streak, err := d.daily.CurrentStreak(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, streak)
		})
	}
}

func TestDailyService_StreakOfConsecutiveDays(t *testing.T) {
	ctx := context.Background()
	d := newDevice(nil)
	today := at("2026-10-15", 10)
	freeze(d, today)

	for i := 0; i < 30; i++ {
		require.NoError(t, d.journal.MarkStreakDay(ctx, "s1", d.daily.DayKey(today.AddDate(0, 0, -i))))
	}

	streak, err := d.daily.CurrentStreak(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 30, streak)
}

func TestDailyService_MarkStreakDayTwice(t *testing.T) {
	ctx := context.Background()
	d := newDevice(nil)
	freeze(d, at("2026-10-15", 10))

	require.NoError(t, d.daily.MarkStreakDay(ctx, "s1"))
	require.NoError(t, d.daily.MarkStreakDay(ctx, "s1"))

	days, err := d.journal.StreakDays(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-15"}, days)
}

func TestDailyService_JoinedDays(t *testing.T) {
	d := newDevice(nil)
	now := at("2026-10-15", 10)
	freeze(d, now)

	joined := now.Add(-49 * time.Hour)
	assert.Equal(t, 2, d.daily.JoinedDays(&models.Session{JoinedAt: &joined}))

	recent := now.Add(-time.Hour)
	assert.Equal(t, 0, d.daily.JoinedDays(&models.Session{JoinedAt: &recent}))
	assert.Equal(t, 0, d.daily.JoinedDays(&models.Session{}))
}

func TestDailyService_SaveAnswerValidation(t *testing.T) {
	ctx := context.Background()
	d := newDevice(nil)
	a := signup(t, d, "Alice")

	_, err := d.daily.SaveAnswer(ctx, a, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = d.daily.SaveAnswer(ctx, a, "hello")
	assert.ErrorIs(t, err, models.ErrNotPaired)

	_, err = d.daily.Dashboard(ctx, a)
	assert.ErrorIs(t, err, models.ErrNotPaired)
}

func TestDailyService_SaveAnswerSameDayReplaces(t *testing.T) {
	ctx := context.Background()
	d, a := pairedDevice(t)
	freeze(d, at("2026-10-15", 9))

	_, err := d.daily.SaveAnswer(ctx, a, "first")
	require.NoError(t, err)
	_, err = d.daily.SaveAnswer(ctx, a, "  second  ")
	require.NoError(t, err)

	answer, err := d.daily.TodayAnswer(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, "second", answer.Text)

	freeze(d, at("2026-10-16", 9))
	answer, err = d.daily.TodayAnswer(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, answer)
}

// Scenario: an answer saved today shows up on the dashboard after a reload
func TestDailyService_DashboardAfterAnswer(t *testing.T) {
	ctx := context.Background()
	d, a := pairedDevice(t)
	freeze(d, at("2026-10-15", 9))

	_, err := d.daily.SaveAnswer(ctx, a, "Our trip to the coast")
	require.NoError(t, err)

	// a reload reads everything back from the store
	reloaded := NewDailyService(d.sessions, d.journal, time.UTC)
	reloaded.now = d.daily.now

	dashboard, err := reloaded.Dashboard(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, dashboard.TodayAnswer)
	assert.Equal(t, "Our trip to the coast", dashboard.TodayAnswer.Text)
	assert.Equal(t, 1, dashboard.AnswersCount)
	assert.Equal(t, 1, dashboard.Streak)
	assert.Equal(t, "Alice & Bob", dashboard.CoupleNames)
	assert.Equal(t, reloaded.PromptFor(at("2026-10-15", 0)), dashboard.Question)

	require.Len(t, dashboard.Calendar, calendarDays)
	first, last := dashboard.Calendar[0], dashboard.Calendar[calendarDays-1]
	assert.Equal(t, "2026-09-25", first.Day)
	assert.False(t, first.Done)
	assert.Equal(t, "2026-10-15", last.Day)
	assert.True(t, last.Done)
	assert.True(t, last.Today)
}
