package repository

import (
	"context"
	"fmt"
	"slices"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/store"
)

const (
	keyAnswers = "answers"
	keyStreak  = "streak"
)

// JournalRepository holds a session's daily answers and streak days
type JournalRepository struct {
	store store.Store
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(s store.Store) *JournalRepository {
	return &JournalRepository{store: s}
}

// Answers returns all saved answers keyed by calendar day
func (r *JournalRepository) Answers(ctx context.Context, sessionID string) (map[string]models.Answer, error) {
	answers := make(map[string]models.Answer)
	if err := store.GetJSON(ctx, r.store, sessionKey(sessionID, keyAnswers), &answers); err != nil {
		if store.IsNotFound(err) {
			return make(map[string]models.Answer), nil
		}
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return answers, nil
}

// SaveAnswer stores answer for day, replacing an earlier answer that day
func (r *JournalRepository) SaveAnswer(ctx context.Context, sessionID, day string, answer models.Answer) error {
	answers, err := r.Answers(ctx, sessionID)
	if err != nil {
		return err
	}
	answers[day] = answer
	if err := store.SetJSON(ctx, r.store, sessionKey(sessionID, keyAnswers), answers); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// StreakDays returns the set of days an answer was saved on, sorted
func (r *JournalRepository) StreakDays(ctx context.Context, sessionID string) ([]string, error) {
	var days []string
	if err := store.GetJSON(ctx, r.store, sessionKey(sessionID, keyStreak), &days); err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read streak: %w", err)
	}
	return days, nil
}

// MarkStreakDay adds day to the streak set. Marking a day twice is a no-op.
func (r *JournalRepository) MarkStreakDay(ctx context.Context, sessionID, day string) error {
	days, err := r.StreakDays(ctx, sessionID)
	if err != nil {
		return err
	}
	if slices.Contains(days, day) {
		return nil
	}
	days = append(days, day)
	slices.Sort(days)
	if err := store.SetJSON(ctx, r.store, sessionKey(sessionID, keyStreak), days); err != nil {
		return fmt.Errorf("failed to mark streak day: %w", err)
	}
	return nil
}
