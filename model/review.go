package model

import "time"

// Review is created once with its trust score and moderation status already
// decided; the pipeline never recomputes them afterwards. Only replies are
// appended and aggregate stats on the parent application are refreshed.
type Review struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	AppID            string    `json:"app_id" gorm:"not null;index:idx_reviews_app"`
	UserID           *string   `json:"user_id,omitempty" gorm:"index"` // nil for guest reviews
	UserName         string    `json:"user_name" gorm:"not null;size:100"`
	Rating           int       `json:"rating" gorm:"not null"`
	Message          string    `json:"message" gorm:"type:text;not null"`
	IPAddress        string    `json:"-" gorm:"index;size:64"`
	Fingerprint      string    `json:"-" gorm:"index;size:64"`
	TrustScore       int       `json:"trust_score"`
	ModerationStatus string    `json:"moderation_status" gorm:"index;size:20"` // pending, approved, spam
	IsSpam           bool      `json:"is_spam" gorm:"default:false;index"`
	Replies          []Reply   `json:"replies" gorm:"foreignKey:ReviewID"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Reply is owned by exactly one review; appended, never edited or reordered.
type Reply struct {
	ID          string    `json:"reply_id" gorm:"primaryKey"`
	ReviewID    string    `json:"-" gorm:"not null;index"`
	UserID      *string   `json:"user_id,omitempty"`
	UserName    string    `json:"user_name" gorm:"not null;size:100"`
	IsDeveloper bool      `json:"is_developer" gorm:"default:false"`
	Comment     string    `json:"comment" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
}
