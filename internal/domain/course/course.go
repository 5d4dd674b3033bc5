package course

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound covers both a missing course and one owned by another
	// admin; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("course not found")
)

// Image is the reference to a file held by the remote image host.
type Image struct {
	RemoteID string `json:"remoteId"`
	URL      string `json:"url"`
}

type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	DiscountedPrice int64     `json:"discountedPrice"`
	Image           Image     `json:"image"`
	CreatorID       string    `json:"creatorId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CreateCourseRequest is bound from the multipart form; the image part is
// read separately.
type CreateCourseRequest struct {
	Title       string   `form:"title" binding:"required,trimmin=1,max=200"`
	Description string   `form:"description" binding:"required,trimmin=1,max=5000"`
	Price       *float64 `form:"price" binding:"required,gte=0,lte=10000000"`
}

// UpdateCourseRequest carries only the fields the admin supplied.
type UpdateCourseRequest struct {
	Title       *string  `form:"title" binding:"omitempty,trimmin=1,max=200"`
	Description *string  `form:"description" binding:"omitempty,trimmin=1,max=5000"`
	Price       *float64 `form:"price" binding:"omitempty,gte=0,lte=10000000"`
}

func New(req CreateCourseRequest, creatorID string, img Image) Course {
	now := time.Now().UTC()

	c := Course{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       *req.Price,
		Image:       img,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return c.WithDiscount()
}

// Apply overwrites only the fields present in the request.
func (req UpdateCourseRequest) Apply(c Course) Course {
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) != "" {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		c.Price = *req.Price
	}
	c.UpdatedAt = time.Now().UTC()

	return c.WithDiscount()
}

// WithDiscount fills the display price the storefront shows.
func (c Course) WithDiscount() Course {
	c.DiscountedPrice = DiscountedPrice(c.Price, DefaultDiscountPercent)
	return c
}
