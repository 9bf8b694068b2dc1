package dto

import "time"

type SubmitReviewRequest struct {
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Message  string `json:"message" validate:"required"`
	UserName string `json:"user" validate:"required,max=100"`
}

func (r SubmitReviewRequest) Validate() error {
	return GetValidator().Struct(r)
}

type SubmitReplyRequest struct {
	Comment  string `json:"comment" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=100"`
}

func (r SubmitReplyRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ReplyResponse struct {
	ReplyID     string    `json:"reply_id"`
	UserID      *string   `json:"user_id,omitempty"`
	UserName    string    `json:"user_name"`
	IsDeveloper bool      `json:"is_developer"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReviewResponse struct {
	ID               string          `json:"id"`
	AppID            string          `json:"app_id"`
	UserID           *string         `json:"user_id,omitempty"`
	UserName         string          `json:"user_name"`
	Rating           int             `json:"rating"`
	Message          string          `json:"message"`
	TrustScore       int             `json:"trust_score"`
	ModerationStatus string          `json:"moderation_status"`
	Replies          []ReplyResponse `json:"replies"`
	CreatedAt        time.Time       `json:"created_at"`
}

type ReviewListResponse struct {
	Reviews      []ReviewResponse `json:"reviews"`
	Rating       float64          `json:"rating"`
	ReviewsCount int              `json:"reviews_count"`
}
