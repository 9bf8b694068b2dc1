package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/appforge-labs/forge_api/model"
	"github.com/appforge-labs/forge_api/shared"
)

// AppSeeder creates a handful of approved demo listings owned by the
// seeded developer accounts.
type AppSeeder struct {
	db *gorm.DB
}

func NewAppSeeder(db *gorm.DB) *AppSeeder {
	return &AppSeeder{db: db}
}

func (s *AppSeeder) Seed() error {
	var developer model.User
	if err := s.db.Where("username = ?", "pixelstudio").First(&developer).Error; err != nil {
		log.Printf("Developer account missing, seed users first: %v", err)
		return err
	}

	apps := []struct {
		name        string
		slug        string
		description string
		category    string
		status      string
	}{
		{"Taskboard Pro", "taskboard-pro", "Kanban boards with offline sync and team sharing.", "productivity", shared.AppStatusApproved},
		{"Pixel Runner", "pixel-runner", "Endless runner with retro pixel art and daily challenges.", "games", shared.AppStatusApproved},
		{"Budget Lens", "budget-lens", "Scan receipts and track spending by category.", "finance", shared.AppStatusPending},
	}

	for _, a := range apps {
		var existing model.Application
		if err := s.db.Where("slug = ?", a.slug).First(&existing).Error; err == nil {
			log.Printf("App %s already exists, skipping", a.slug)
			continue
		}

		app := model.Application{
			ID:          uuid.New().String(),
			Name:        a.name,
			Slug:        a.slug,
			DeveloperID: developer.ID,
			Description: a.description,
			Category:    a.category,
			Status:      a.status,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err := s.db.Create(&app).Error; err != nil {
			log.Printf("Error creating app %s: %v", a.slug, err)
			return err
		}

		log.Printf("Created app: %s (%s)", app.Name, app.Status)
	}

	return nil
}
