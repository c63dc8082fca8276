package notifier

import "time"

// Config controls delivery to the single notification chat.
type Config struct {
	ChatID   int64
	ThreadID int

	RatePerSec    int
	SendTimeout   time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	HistorySize   int
}

type HistoryItem struct {
	At   time.Time
	Text string
	Err  string
}

// DeliveryEvent is published on the event bus after each delivery attempt.
type DeliveryEvent struct {
	ChatID   int64     `json:"chat_id"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
