package models

import (
	"fmt"
	"image"
	"time"
)

// File is an attachment stored server-side.
type File struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	UploadTime *Timestamp `json:"uploadTime,omitempty"`
	Size       int64      `json:"size,omitempty"`
}

// ExtensionRequest asks to move the end date of an accepted pass request.
type ExtensionRequest struct {
	ID              string     `json:"id"`
	PassRequestID   string     `json:"passRequestId,omitempty"`
	DateEnd         Timestamp  `json:"dateEnd"`
	Files           []File     `json:"minioFiles"`
	Acceptance      Acceptance `json:"isAccepted"`
	CreateTimestamp Timestamp  `json:"createTimestamp"`
	UpdateTimestamp Timestamp  `json:"updateTimestamp"`
	Message         *string    `json:"message,omitempty"`
}

// PassRequest is a request to be absent between DateStart and DateEnd.
type PassRequest struct {
	ID                string             `json:"id"`
	User              User               `json:"user"`
	DateStart         Timestamp          `json:"dateStart"`
	DateEnd           Timestamp          `json:"dateEnd"`
	Files             []File             `json:"minioFiles"`
	ExtensionRequests []ExtensionRequest `json:"extendPassTimeRequests"`
	Acceptance        Acceptance         `json:"isAccepted"`
	CreateTimestamp   Timestamp          `json:"createTimestamp"`
	UpdateTimestamp   Timestamp          `json:"updateTimestamp"`
	Message           *string            `json:"message,omitempty"`
}

// Key identifies the request for de-duplication in paged lists.
func (p PassRequest) Key() string {
	return p.ID
}

// Period renders the absence period for display.
func (p PassRequest) Period() string {
	return FormatPeriod(p.DateStart.Time, p.DateEnd.Time)
}

// RequestFilter narrows request listings. Nil fields are not sent.
type RequestFilter struct {
	UserID     string
	UserSearch string
	DateStart  *time.Time
	DateEnd    *time.Time
	Accepted   *bool
}

// StatusFilter is the preset used by the student listing.
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusAccepted StatusFilter = "accepted"
	StatusRejected StatusFilter = "rejected"
)

// Value converts the preset to the isAccepted query value.
func (s StatusFilter) Value() (*bool, error) {
	switch s {
	case StatusAll, "":
		return nil, nil
	case StatusAccepted:
		v := true
		return &v, nil
	case StatusRejected:
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("unknown status filter %q", string(s))
}

// PageRequest selects a page of a listing.
type PageRequest struct {
	Page int
	Size int
	Sort []string
}

// Attachment is an image picked for upload that has no server id yet.
type Attachment struct {
	Name  string
	Image image.Image
}

// FormatPeriod renders "2 January 2024 - 5 January 2024".
func FormatPeriod(start, end time.Time) string {
	const layout = "2 January 2006"
	return fmt.Sprintf("%s - %s", start.Format(layout), end.Format(layout))
}
