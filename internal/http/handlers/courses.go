package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/imagehost"
	"github.com/gin-gonic/gin"
)

type CourseStore interface {
	Create(ctx context.Context, c course.Course) (course.Course, error)
	List(ctx context.Context) ([]course.Course, error)
	GetByID(ctx context.Context, id string) (course.Course, error)
	GetOwned(ctx context.Context, id, creatorID string) (course.Course, error)
	Update(ctx context.Context, c course.Course) (course.Course, error)
	DeleteOwned(ctx context.Context, id, creatorID string) error
}

// CleanupQueue records remote images that could not be removed in-request.
type CleanupQueue interface {
	Enqueue(ctx context.Context, remoteID, reason string) (cleanup.Task, error)
}

type CoursesHandler struct {
	courses CourseStore
	images  imagehost.Host
	cleanup CleanupQueue
	log     *slog.Logger
	maxFile int64
}

func NewCoursesHandler(courses CourseStore, images imagehost.Host, queue CleanupQueue, log *slog.Logger, maxFile int64) *CoursesHandler {
	if maxFile <= 0 {
		maxFile = 5 << 20
	}

	return &CoursesHandler{
		courses: courses,
		images:  images,
		cleanup: queue,
		log:     log,
		maxFile: maxFile,
	}
}

const (
	imageField           = "image"
	notFoundMessage      = "Course not found"
	invalidFormatMessage = "Invalid file format. Only PNG, JPG, JPEG allowed."
)

func (h *CoursesHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	courses, err := h.courses.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Error to fetch all courses", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"message": "All courses are fetched successfully",
		"courses": courses,
	})
}

func (h *CoursesHandler) Details(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.courses.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		RespondInternal(ctx, "Error fetching course details", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"message": "Course details fetched successfully",
		"course":  c,
	})
}

func (h *CoursesHandler) Create(ctx *gin.Context) {
	adminID, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	var req course.CreateCourseRequest

	if !BindForm(ctx, &req) {
		return
	}

	upload, present, ok := h.readImage(ctx)
	if !ok {
		return
	}

	if !present {
		RespondBadRequest(ctx, "Image file is required", gin.H{"fields": []FieldError{
			{Field: imageField, Rule: "required", Message: "is required"},
		}})
		return
	}

	cctx, cancel := requestContext(ctx, 30*time.Second)
	defer cancel()

	img, err := h.images.Upload(cctx, upload)

	if err != nil {
		RespondInternal(ctx, "Error creating course", err)
		return
	}

	c, err := h.courses.Create(cctx, course.New(req, adminID, img))

	if err != nil {
		h.releaseImage(cctx, img.RemoteID, "course create failed")
		RespondInternal(ctx, "Error creating course", err)
		return
	}

	h.log.InfoContext(cctx, "course created", "course_id", c.ID)

	RespondOK(ctx, http.StatusCreated, "Course created successfully", gin.H{
		"course": c,
	})
}

// Update applies the supplied fields to a course the admin owns. A new image
// replaces the old one: the old remote file is removed first, then the new
// one uploaded.
func (h *CoursesHandler) Update(ctx *gin.Context) {
	adminID, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	var req course.UpdateCourseRequest

	if !BindForm(ctx, &req) {
		return
	}

	upload, present, ok := h.readImage(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 30*time.Second)
	defer cancel()

	current, err := h.courses.GetOwned(cctx, ctx.Param("id"), adminID)

	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		RespondInternal(ctx, "Error while updating course", err)
		return
	}

	next := req.Apply(current)

	if present {
		if current.Image.RemoteID != "" {
			if err := h.images.Remove(cctx, current.Image.RemoteID); err != nil {
				RespondInternal(ctx, "Error while updating course", err)
				return
			}
		}

		img, err := h.images.Upload(cctx, upload)
		if err != nil {
			RespondInternal(ctx, "Error while updating course", err)
			return
		}
		next.Image = img
	}

	updated, err := h.courses.Update(cctx, next)

	if err != nil {
		if present {
			h.releaseImage(cctx, next.Image.RemoteID, "course update failed")
		}
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		RespondInternal(ctx, "Error while updating course", err)
		return
	}

	RespondOK(ctx, http.StatusAccepted, "Course updated successfully", gin.H{
		"course": updated,
	})
}

// Delete removes the remote image, then the course record. When the image
// host fails the id is queued for the cleanup worker and the record is
// deleted anyway.
func (h *CoursesHandler) Delete(ctx *gin.Context) {
	adminID, ok := middlewares.ActorIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, 30*time.Second)
	defer cancel()

	id := ctx.Param("id")

	c, err := h.courses.GetOwned(cctx, id, adminID)

	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		RespondInternal(ctx, "Error in deleting course", err)
		return
	}

	h.releaseImage(cctx, c.Image.RemoteID, "course deleted")

	if err := h.courses.DeleteOwned(cctx, id, adminID); err != nil {
		if errors.Is(err, course.ErrNotFound) {
			RespondNotFound(ctx, notFoundMessage)
			return
		}
		RespondInternal(ctx, "Error in deleting course", err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Course deleted successfully", nil)
}

// readImage returns the optional image part, already type-checked. On a bad
// file it writes the 400 and reports ok=false.
func (h *CoursesHandler) readImage(ctx *gin.Context) (upload imagehost.Upload, present bool, ok bool) {
	fh, err := ctx.FormFile(imageField)

	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return imagehost.Upload{}, false, true
		}
		RespondBadRequest(ctx, "Could not read image upload", gin.H{"reason": err.Error()})
		return imagehost.Upload{}, false, false
	}

	if fh.Size > h.maxFile {
		RespondBadRequest(ctx, "Image file is too large", gin.H{"fields": []FieldError{
			{Field: imageField, Rule: "max", Message: "file is too large"},
		}})
		return imagehost.Upload{}, false, false
	}

	data, err := readPart(fh, h.maxFile)
	if err != nil {
		RespondBadRequest(ctx, "Could not read image upload", nil)
		return imagehost.Upload{}, false, false
	}

	upload, err = imagehost.Check(fh.Filename, fh.Header.Get("Content-Type"), data)

	if err != nil {
		RespondBadRequest(ctx, invalidFormatMessage, gin.H{"fields": []FieldError{
			{Field: imageField, Rule: "mimetype", Param: "image/png image/jpeg", Message: "must be a png or jpeg image"},
		}})
		return imagehost.Upload{}, false, false
	}

	return upload, true, true
}

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, max))
}

// releaseImage removes remoteID from the image host, queueing it for the
// cleanup worker when the host fails.
func (h *CoursesHandler) releaseImage(ctx context.Context, remoteID, reason string) {
	if remoteID == "" {
		return
	}

	err := h.images.Remove(ctx, remoteID)
	if err == nil {
		return
	}

	h.log.WarnContext(ctx, "image removal failed, queueing cleanup", "remote_id", remoteID, "reason", reason, "err", err)

	if h.cleanup == nil {
		return
	}

	// the request context may already be spent on the failed call
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	if _, err := h.cleanup.Enqueue(qctx, remoteID, reason); err != nil {
		h.log.ErrorContext(qctx, "cleanup enqueue failed", "remote_id", remoteID, "err", err)
	}
}
