package model

import "time"

// Application is a marketplace listing. Rating and ReviewsCount are
// denormalized from the reviews table and recomputed on every submission
// or deletion; they are never the source of truth.
type Application struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null;size:100"`
	Slug         string    `json:"slug" gorm:"uniqueIndex;size:120"`
	DeveloperID  string    `json:"developer_id" gorm:"index"`
	Description  string    `json:"description" gorm:"type:text"`
	Category     string    `json:"category" gorm:"index;size:50"`
	IconURL      string    `json:"icon_url"`
	Status       string    `json:"status" gorm:"default:pending;index;size:20"` // pending, approved, rejected
	Rating       float64   `json:"rating" gorm:"default:0"`
	ReviewsCount int       `json:"reviews_count" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
