package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/repository"
)

const (
	dayLayout      = "2006-01-02"
	streakScanDays = 365
	calendarDays   = 21
)

// Prompts is the fixed rotation of daily questions. Both partners see the
// same one on the same day without coordinating.
var Prompts = []string{
	"What's one thing I did recently that made you smile?",
	"If we could go anywhere tomorrow, where would you want to go?",
	"What's your favorite memory of us together?",
	"What's something new you'd love to try with me?",
	"What song makes you think of me?",
	"What's one thing you appreciate about our relationship?",
	"What's a dream you haven't told me yet?",
	"When do you feel most loved by me?",
	"What's something small I do that means a lot to you?",
	"What's a goal you'd love us to achieve together?",
	"What's your love language today?",
	"What's one thing you wish we did more often?",
	"Describe our relationship in three words.",
	"What's your happiest moment from this week?",
	"What's one way I can be a better partner?",
	"If you could relive one day with me, which would it be?",
	"What's something you've always wanted to tell me?",
	"What's the most romantic thing I've ever done for you?",
	"What made you fall in love with me?",
	"What's one thing we should do before the end of the year?",
}

// DailyService picks the prompt of the day and keeps answers and streaks
type DailyService struct {
	sessions *repository.SessionRepository
	journal  *repository.JournalRepository
	loc      *time.Location
	now      func() time.Time
}

// NewDailyService creates a new daily service. Calendar days are counted in loc.
func NewDailyService(sessions *repository.SessionRepository, journal *repository.JournalRepository, loc *time.Location) *DailyService {
	if loc == nil {
		loc = time.Local
	}
	return &DailyService{
		sessions: sessions,
		journal:  journal,
		loc:      loc,
		now:      time.Now,
	}
}

// DayKey formats the calendar day of t
func (s *DailyService) DayKey(t time.Time) string {
	return t.In(s.loc).Format(dayLayout)
}

// PromptFor returns the prompt for the calendar day containing t
func (s *DailyService) PromptFor(t time.Time) string {
	y, m, d := t.In(s.loc).Date()
	epochDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	idx := epochDay % int64(len(Prompts))
	if idx < 0 {
		idx += int64(len(Prompts))
	}
	return Prompts[idx]
}

// TodayPrompt returns the prompt for the current day
func (s *DailyService) TodayPrompt() string {
	return s.PromptFor(s.now())
}

func (s *DailyService) loadPaired(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.User == nil {
		return nil, models.ErrNotSignedUp
	}
	if !session.IsPaired() {
		return nil, models.ErrNotPaired
	}
	return session, nil
}

// SaveAnswer stores today's answer, replacing an earlier one from today,
// and marks today as a streak day
func (s *DailyService) SaveAnswer(ctx context.Context, sessionID, text string) (*models.Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("write something first: %w", models.ErrValidation)
	}
	if _, err := s.loadPaired(ctx, sessionID); err != nil {
		return nil, err
	}

	now := s.now()
	today := s.DayKey(now)
	answer := models.Answer{Text: text, Timestamp: now}
	if err := s.journal.SaveAnswer(ctx, sessionID, today, answer); err != nil {
		return nil, err
	}
	if err := s.journal.MarkStreakDay(ctx, sessionID, today); err != nil {
		return nil, err
	}
	return &answer, nil
}

// MarkStreakDay adds today to the session's streak days
func (s *DailyService) MarkStreakDay(ctx context.Context, sessionID string) error {
	return s.journal.MarkStreakDay(ctx, sessionID, s.DayKey(s.now()))
}

// TodayAnswer returns today's answer, or nil when none was saved
func (s *DailyService) TodayAnswer(ctx context.Context, sessionID string) (*models.Answer, error) {
	answers, err := s.journal.Answers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answer, ok := answers[s.DayKey(s.now())]
	if !ok {
		return nil, nil
	}
	return &answer, nil
}

// CurrentStreak counts consecutive streak days ending today. The walk
// back stops at the first gap or after a year.
func (s *DailyService) CurrentStreak(ctx context.Context, sessionID string) (int, error) {
	days, err := s.journal.StreakDays(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return s.countStreak(days), nil
}

func (s *DailyService) countStreak(days []string) int {
	if len(days) == 0 {
		return 0
	}
	streak := 0
	d := s.now().In(s.loc)
	for i := 0; i < streakScanDays; i++ {
		if !slices.Contains(days, d.Format(dayLayout)) {
			break
		}
		streak++
		d = d.AddDate(0, 0, -1)
	}
	return streak
}

// JoinedDays returns the number of whole days since the session was paired
func (s *DailyService) JoinedDays(session *models.Session) int {
	if session == nil || session.JoinedAt == nil {
		return 0
	}
	elapsed := s.now().Sub(*session.JoinedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

func (s *DailyService) calendar(days []string) []models.CalendarDay {
	today := s.now().In(s.loc)
	cells := make([]models.CalendarDay, 0, calendarDays)
	for i := calendarDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dayLayout)
		cells = append(cells, models.CalendarDay{
			Day:   day,
			Done:  slices.Contains(days, day),
			Today: i == 0,
		})
	}
	return cells
}

// Dashboard gathers the dashboard of a paired session
func (s *DailyService) Dashboard(ctx context.Context, sessionID string) (*models.Dashboard, error) {
	session, err := s.loadPaired(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	answers, err := s.journal.Answers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	days, err := s.journal.StreakDays(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		User:         *session.User,
		Partner:      *session.Partner,
		CoupleNames:  fmt.Sprintf("%s & %s", session.User.Name, session.Partner.Name),
		Streak:       s.countStreak(days),
		JoinedDays:   s.JoinedDays(session),
		AnswersCount: len(answers),
		Question:     s.TodayPrompt(),
		Calendar:     s.calendar(days),
	}
	if answer, ok := answers[s.DayKey(s.now())]; ok {
		dashboard.TodayAnswer = &answer
	}

	return dashboard, nil
}
