package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/weirwood/scry/internal/pkg/errcode"
	appErr "github.com/weirwood/scry/internal/pkg/errors"
	"github.com/weirwood/scry/internal/pkg/response"
	"github.com/weirwood/scry/internal/service"
)

type ImageHandler struct {
	images *service.ImageService
}

func NewImageHandler(images *service.ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

type resolveImageRequest struct {
	ArtDescription string `json:"art_description"`
	StyleNotes     string `json:"style_notes"`
}

func (h *ImageHandler) Resolve(c *gin.Context) {
	var req resolveImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.images.ResolveImage(c.Request.Context(), req.ArtDescription, req.StyleNotes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageUnavailable):
			response.Error(c, errcode.ErrProviderUnavailable, "image provider not configured")
		case errors.Is(err, appErr.ErrInvalid), errors.Is(err, appErr.ErrStorage):
			handleError(c, err)
		default:
			logutil.GetLogger(c.Request.Context()).Error("image generation failed", zap.Error(err))
			response.Error(c, errcode.ErrGenerationFailed, "image generation failed")
		}
		return
	}
	response.Success(c, gin.H{
		"image_url": result.ImageURL,
		"cached":    result.Cached,
	})
}

func (h *ImageHandler) CacheStatus(c *gin.Context) {
	status, err := h.images.CacheStatus(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"entries":     status.Entries,
		"asset_files": status.AssetFiles,
		"asset_bytes": status.AssetBytes,
	})
}
