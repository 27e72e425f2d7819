package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"elasticpool/internal/service"
	"elasticpool/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// FormFileField multipart field carrying the payload
	FormFileField = "inputFile"

	maxPayloadBytes = 32 << 20
)

// IngressHandler handles submissions and result lookups
type IngressHandler struct {
	ingressService *service.IngressService
}

// NewIngressHandler creates ingress handler
func NewIngressHandler(ingressService *service.IngressService) *IngressHandler {
	return &IngressHandler{ingressService: ingressService}
}

// Submit accepts one multipart payload and queues it
// @Summary Submit a payload for classification
// @Accept multipart/form-data
// @Produce plain
// @Param inputFile formData file true "Payload"
// @Success 200 {string} string "<base_id>:Processing"
// @Failure 400 {string} string
// @Router / [post]
func (h *IngressHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile(FormFileField)
	if err != nil {
		logger.WarnCtx(ctx, "submission without %s: %v", FormFileField, err)
		c.String(http.StatusBadRequest, "ERROR: No inputFile provided")
		return
	}
	if file.Filename == "" {
		c.String(http.StatusBadRequest, "ERROR: No filename provided")
		return
	}
	if file.Size > maxPayloadBytes {
		c.String(http.StatusRequestEntityTooLarge, "ERROR: payload exceeds %d bytes", maxPayloadBytes)
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to read upload %s: %v", file.Filename, err)
		c.String(http.StatusBadRequest, "ERROR: unreadable inputFile")
		return
	}

	ack, err := h.ingressService.Submit(ctx, file.Filename, data)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubmission) {
			c.String(http.StatusBadRequest, "ERROR: %v", err)
			return
		}
		logger.ErrorCtx(ctx, "failed to submit %s: %v", file.Filename, err)
		c.String(http.StatusInternalServerError, "ERROR: submission failed")
		return
	}

	c.String(http.StatusOK, ack)
}

// Result returns the published result line of a job
// @Summary Get job result
// @Produce plain
// @Param id path string true "Base id (file name without extension)"
// @Success 200 {string} string "<base_id>:<label>"
// @Failure 404 {string} string
// @Router /v1/results/{id} [get]
func (h *IngressHandler) Result(c *gin.Context) {
	id := c.Param("id")
	line, err := h.ingressService.Result(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		c.String(http.StatusNotFound, "%s:%s", id, "NotFound")
	case errors.Is(err, service.ErrInvalidSubmission):
		c.String(http.StatusBadRequest, "ERROR: %v", err)
	case err != nil:
		logger.ErrorCtx(c.Request.Context(), "failed to read result %s: %v", id, err)
		c.String(http.StatusInternalServerError, "ERROR: result lookup failed")
	default:
		c.String(http.StatusOK, line)
	}
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPayloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes)
	}
	return data, nil
}
