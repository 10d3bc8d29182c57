package dto

import (
	"time"

	"github.com/noah-isme/pass-request-client/internal/models"
)

// CreatePassRequest is the form for a new absence request.
type CreatePassRequest struct {
	DateStart time.Time           `validate:"required"`
	DateEnd   time.Time           `validate:"required"`
	Message   string              `validate:"max=1000"`
	Images    []models.Attachment `validate:"min=1"`
}

// ExtendPassRequest asks to move an accepted request's end date.
type ExtendPassRequest struct {
	DateEnd time.Time           `validate:"required"`
	Message string              `validate:"max=1000"`
	Images  []models.Attachment `validate:"min=1"`
}
