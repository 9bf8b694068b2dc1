package services

import (
	"errors"
	"strings"

	"github.com/alphabatem/common/context"
	"gorm.io/gorm"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/model"
	"github.com/appforge-labs/forge_api/shared"
	log "github.com/sirupsen/logrus"
)

// AppService is thin CRUD glue around marketplace listings: storefront
// reads, developer submission and the admin approve/reject path.
type AppService struct {
	context.DefaultService

	sqlSvc *PostgresService
}

const APP_SVC = "app_svc"

func (svc AppService) Id() string {
	return APP_SVC
}

func (svc *AppService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *AppService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// ListApps returns approved storefront listings.
func (svc *AppService) ListApps(category string, limit int) (*dto.AppListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	apps, err := svc.sqlSvc.ListApps(shared.AppStatusApproved, category, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AppResponse, len(apps))
	for i := range apps {
		responses[i] = mapAppToResponse(&apps[i])
	}

	return &dto.AppListResponse{Apps: responses, Total: len(responses)}, nil
}

// ListAppsByStatus backs the admin console list screens.
func (svc *AppService) ListAppsByStatus(status string) (*dto.AppListResponse, error) {
	apps, err := svc.sqlSvc.ListApps(status, "", 0)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AppResponse, len(apps))
	for i := range apps {
		responses[i] = mapAppToResponse(&apps[i])
	}

	return &dto.AppListResponse{Apps: responses, Total: len(responses)}, nil
}

func (svc *AppService) GetApp(appID string) (*dto.AppResponse, error) {
	app, err := svc.sqlSvc.GetApp(appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("App not found")
		}
		return nil, err
	}

	resp := mapAppToResponse(app)
	return &resp, nil
}

// CreateApp registers a developer submission; listings start pending until
// an admin approves them.
func (svc *AppService) CreateApp(developerID string, req dto.CreateAppRequest) (*dto.AppResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, shared.NewValidationError("Validation failed", dto.FormatValidationErrors(err))
	}

	name := shared.SanitizeText(req.Name)
	if name == "" {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "name", Message: "name must not be empty"},
		})
	}

	app := &model.Application{
		Name:        name,
		Slug:        slugify(name),
		DeveloperID: developerID,
		Description: shared.SanitizeText(req.Description),
		Category:    req.Category,
		IconURL:     req.IconURL,
		Status:      shared.AppStatusPending,
	}

	app, err := svc.sqlSvc.CreateApp(app)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE_CONSTRAINT") {
			return nil, shared.NewConflictError("An app with this name already exists")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"app_id":       app.ID,
		"developer_id": developerID,
	}).Info("App submitted")

	resp := mapAppToResponse(app)
	return &resp, nil
}

// UpdateAppStatus is the admin approve/reject action.
func (svc *AppService) UpdateAppStatus(appID string, req dto.UpdateAppStatusRequest) error {
	if err := req.Validate(); err != nil {
		return shared.NewValidationError("Validation failed", dto.FormatValidationErrors(err))
	}

	err := svc.sqlSvc.UpdateAppStatus(appID, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("App not found")
		}
		return err
	}
	return nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}

func mapAppToResponse(app *model.Application) dto.AppResponse {
	return dto.AppResponse{
		ID:           app.ID,
		Name:         app.Name,
		Slug:         app.Slug,
		DeveloperID:  app.DeveloperID,
		Description:  app.Description,
		Category:     app.Category,
		IconURL:      app.IconURL,
		Status:       app.Status,
		Rating:       app.Rating,
		ReviewsCount: app.ReviewsCount,
		CreatedAt:    app.CreatedAt,
	}
}
