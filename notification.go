package delta

import "github.com/shopspring/decimal"

// Notification is a message sent by the platform to the user, e.g. an order fill.
type Notification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt Timestamp `json:"createdAt"`
}

// LeaderboardEntry ranks a user by net worth.
type LeaderboardEntry struct {
	Username          string          `json:"username"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
	NetWorth          decimal.Decimal `json:"netWorth"`
	GainLossPercent   decimal.Decimal `json:"gainLossPercent"` // since the initial 10,000 balance.
}

// Achievement is a gamification badge.
type Achievement struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BadgeURL    string    `json:"badgeUrl"`
	Unlocked    bool      `json:"unlocked"`
	UnlockedAt  Timestamp `json:"unlockedAt"`
}
