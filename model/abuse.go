package model

import "time"

// SuspiciousScore accumulates per (ip, fingerprint) pair over the lifetime of
// the deployment. There is no decay or TTL: a pair stays tainted unless a
// positive delta offsets it, and no current code path produces one.
type SuspiciousScore struct {
	ID              string    `json:"id" gorm:"primaryKey;type:text;not null"`
	IPAddress       string    `json:"ip_address" gorm:"not null;uniqueIndex:idx_suspicious_key;size:64"`
	Fingerprint     string    `json:"fingerprint" gorm:"not null;uniqueIndex:idx_suspicious_key;size:64"`
	SuspiciousScore int       `json:"suspicious_score" gorm:"default:0;not null"`
	LastSeen        time.Time `json:"last_seen" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
}
