package models

import "time"

// User represents the identity a session signs up with
type User struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Emoji     string  `json:"emoji"`
	PushToken *string `json:"push_token,omitempty"`
}

// PairRecord is the pairing code a session currently owns
type PairRecord struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// RegistryEntry is what a pairing code resolves to in the shared registry
type RegistryEntry struct {
	User
	PairCode  string    `json:"pairCode"`
	CreatedAt time.Time `json:"createdAt"`
	Partner   *User     `json:"partner,omitempty"`
}

// Session is the identity and pairing state held by one client
type Session struct {
	ID       string      `json:"session_id"`
	User     *User       `json:"user,omitempty"`
	Pair     *PairRecord `json:"pair,omitempty"`
	Partner  *User       `json:"partner,omitempty"`
	JoinedAt *time.Time  `json:"joined_at,omitempty"`
}

// IsPaired reports whether a partner has been recorded for the session
func (s *Session) IsPaired() bool {
	return s != nil && s.Partner != nil
}

// Answer is the text saved for the prompt of one calendar day
type Answer struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// CalendarDay is one cell of the streak calendar
type CalendarDay struct {
	Day   string `json:"day"`
	Done  bool   `json:"done"`
	Today bool   `json:"today"`
}

// Dashboard aggregates everything the dashboard page shows
type Dashboard struct {
	User         User          `json:"user"`
	Partner      User          `json:"partner"`
	CoupleNames  string        `json:"couple_names"`
	Streak       int           `json:"streak"`
	JoinedDays   int           `json:"joined_days"`
	AnswersCount int           `json:"answers_count"`
	Question     string        `json:"question"`
	TodayAnswer  *Answer       `json:"today_answer,omitempty"`
	Calendar     []CalendarDay `json:"calendar"`
}
