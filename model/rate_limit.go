package model

import "time"

// RateLimit is one fixed window per (identifier, endpoint class). The window
// is reset in place when it expires; rows idle for more than 24h are swept
// by a background job.
type RateLimit struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Identifier   string    `json:"identifier" gorm:"not null;uniqueIndex:idx_rate_limit_key;size:255"`
	EndpointType string    `json:"endpoint_type" gorm:"not null;uniqueIndex:idx_rate_limit_key;size:50"`
	RequestCount int       `json:"request_count" gorm:"default:0;not null"`
	WindowStart  time.Time `json:"window_start" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;index"`
}
