package dto

import "time"

type CreateAppRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"required,max=5000"`
	Category    string `json:"category" validate:"required,max=50"`
	IconURL     string `json:"icon_url" validate:"omitempty,url"`
}

func (r CreateAppRequest) Validate() error {
	return GetValidator().Struct(r)
}

type UpdateAppStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

func (r UpdateAppStatusRequest) Validate() error {
	return GetValidator().Struct(r)
}

type AppResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DeveloperID  string    `json:"developer_id"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	IconURL      string    `json:"icon_url"`
	Status       string    `json:"status"`
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviews_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type AppListResponse struct {
	Apps  []AppResponse `json:"apps"`
	Total int           `json:"total"`
}
