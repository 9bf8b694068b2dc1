package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/appforge-labs/forge_api/model"
)

// UserSeeder creates the default admin plus demo developer accounts.
type UserSeeder struct {
	db *gorm.DB
}

func NewUserSeeder(db *gorm.DB) *UserSeeder {
	return &UserSeeder{db: db}
}

func (s *UserSeeder) Seed() error {
	users := []struct {
		email    string
		username string
		password string
		role     string
		verified bool
	}{
		{"admin@appforge.dev", "admin", "admin123", "admin", true},
		{"studio@appforge.dev", "pixelstudio", "developer123", "developer", true},
		{"indie@appforge.dev", "indiemaker", "developer123", "developer", false},
	}

	for _, u := range users {
		var existing model.User
		if err := s.db.Where("username = ?", u.username).First(&existing).Error; err == nil {
			log.Printf("User %s already exists, skipping", u.username)
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := model.User{
			ID:            uuid.New().String(),
			Email:         u.email,
			Username:      u.username,
			Password:      string(hashed),
			EmailVerified: u.verified,
			Role:          u.role,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}

		if err := s.db.Create(&user).Error; err != nil {
			log.Printf("Error creating user %s: %v", u.username, err)
			return err
		}

		log.Printf("Created user: %s (%s)", user.Username, user.Role)
	}

	return nil
}
