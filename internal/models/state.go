package models

import "time"

// SessionRecord is the single persisted session row, the durable
// counterpart of Session. It survives restarts so a still-valid session
// can be restored without a new login.
type SessionRecord struct {
	ID             uint   `gorm:"primaryKey"`
	SessionID      string `gorm:"size:255"`
	TimeoutMinutes int
	CreatedAtMs    int64
	UpdatedAt      time.Time
}

// Session converts the persisted row back into the in-memory form.
func (r SessionRecord) Session() Session {
	return Session{
		SessionID:      r.SessionID,
		TimeoutMinutes: r.TimeoutMinutes,
		CreatedAtMs:    r.CreatedAtMs,
	}
}

// CreatedDocument remembers a purchase request created from this client.
// The backend has no per-user document listing in this integration, so
// these entries scope the "my purchase requests" view.
type CreatedDocument struct {
	ID        uint `gorm:"primaryKey"`
	DocEntry  int  `gorm:"uniqueIndex;not null"`
	DocNum    int
	CreatedAt time.Time
}
