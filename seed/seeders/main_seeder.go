package seeders

import (
	"log"

	"gorm.io/gorm"

	"github.com/appforge-labs/forge_api/model"
)

// MainSeeder coordinates the individual seeders.
type MainSeeder struct {
	db         *gorm.DB
	userSeeder *UserSeeder
	appSeeder  *AppSeeder
}

func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{
		db:         db,
		userSeeder: NewUserSeeder(db),
		appSeeder:  NewAppSeeder(db),
	}
}

func (s *MainSeeder) SeedAll() error {
	if err := s.migrate(); err != nil {
		return err
	}
	if err := s.userSeeder.Seed(); err != nil {
		return err
	}
	return s.appSeeder.Seed()
}

func (s *MainSeeder) SeedUsersOnly() error {
	if err := s.migrate(); err != nil {
		return err
	}
	return s.userSeeder.Seed()
}

func (s *MainSeeder) SeedAppsOnly() error {
	if err := s.migrate(); err != nil {
		return err
	}
	return s.appSeeder.Seed()
}

func (s *MainSeeder) migrate() error {
	log.Println("Migrating schema before seeding...")
	return s.db.AutoMigrate(
		&model.User{},
		&model.Application{},
		&model.Review{},
		&model.Reply{},
		&model.RateLimit{},
		&model.SuspiciousScore{},
	)
}
