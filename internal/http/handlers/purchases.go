package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/purchase"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/gin-gonic/gin"
)

type CourseReader interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]course.Course, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]purchase.Purchase, error)
}

type PurchasesHandler struct {
	courses   CourseReader
	purchases PurchaseStore
	prom      *observability.Prom
	log       *slog.Logger
}

func NewPurchasesHandler(courses CourseReader, purchases PurchaseStore, prom *observability.Prom, log *slog.Logger) *PurchasesHandler {
	return &PurchasesHandler{
		courses:   courses,
		purchases: purchases,
		prom:      prom,
		log:       log,
	}
}

// Buy records that the user owns the course. The store's uniqueness
// constraint decides duplicates; there is no read-then-write check here.
func (h *PurchasesHandler) Buy(ctx *gin.Context) {
	userID, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.courses.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			h.prom.ObservePurchase("not_found")
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		h.prom.ObservePurchase("error")
		RespondInternal(ctx, "Error in course buying", err)
		return
	}

	p, err := h.purchases.Create(cctx, purchase.New(userID, c.ID))

	if err != nil {
		if errors.Is(err, purchase.ErrAlreadyPurchased) {
			h.prom.ObservePurchase("duplicate")
			RespondConflict(ctx, "already_purchased", "User has already purchased this course")
			return
		}
		h.prom.ObservePurchase("error")
		RespondInternal(ctx, "Error in course buying", err)
		return
	}

	h.prom.ObservePurchase("created")
	h.log.InfoContext(cctx, "course purchased", "course_id", c.ID, "purchase_id", p.ID)

	RespondOK(ctx, http.StatusCreated, "Course purchased successfully", gin.H{
		"purchase": p,
	})
}

// ListMine returns the user's purchase records and the courses they refer
// to. Courses deleted since purchase are absent from coursesData.
func (h *PurchasesHandler) ListMine(ctx *gin.Context) {
	userID, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	purchased, err := h.purchases.ListByUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Error while fetching purchased courses", err)
		return
	}

	if len(purchased) == 0 {
		RespondOK(ctx, http.StatusOK, "No purchased courses found", gin.H{
			"purchased":   []purchase.Purchase{},
			"coursesData": []course.Course{},
		})
		return
	}

	courses, err := h.courses.ListByIDs(cctx, purchase.CourseIDs(purchased))

	if err != nil {
		RespondInternal(ctx, "Error while fetching purchased courses", err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Purchased courses fetched successfully", gin.H{
		"purchased":   purchased,
		"coursesData": courses,
	})
}
