package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"filedrop/internal/domain"
	"filedrop/internal/ingest"
	"filedrop/internal/service"
)

type FileResponse struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	URL          string  `json:"url,omitempty"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

type ListResponse struct {
	Files      []FileResponse `json:"files"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type deleteRequest struct {
	Key string `json:"key"`
}

func (h *Handler) listFiles(tier domain.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := service.ListOptions{Cursor: c.Query("cursor")}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid limit."})
				return
			}
			opts.Limit = limit
		}

		page, err := h.files.List(c.Request.Context(), tier, opts)
		if err != nil {
			var vErr *service.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"message": vErr.Message})
				return
			}
			h.logger.Errorf("list %s files: %v", tier, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list files"})
			return
		}

		resp := ListResponse{
			Files:      make([]FileResponse, len(page.Objects)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Objects {
			resp.Files[i] = objectToResponse(page.Objects[i])
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *Handler) uploadFiles(tier domain.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.files.Upload(c.Request.Context(), tier, c.GetHeader("Content-Type"), c.Request.Body)
		if err != nil {
			var ingestErr *ingest.Error
			if errors.As(err, &ingestErr) {
				c.JSON(ingestErr.Status, gin.H{"message": ingestErr.Message})
				return
			}
			h.logger.Errorf("upload %s files: %v", tier, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Upload processing failed"})
			return
		}

		if tier == domain.TierPrivate {
			c.JSON(http.StatusOK, gin.H{"message": "Upload complete"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"urls": result.URLs()})
	}
}

func (h *Handler) deleteFile(tier domain.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Key is required."})
			return
		}

		if err := h.files.Delete(c.Request.Context(), tier, req.Key); err != nil {
			var vErr *service.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"message": vErr.Message})
				return
			}
			h.logger.Errorf("delete %s: %v", req.Key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete file"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
	}
}

func objectToResponse(obj domain.Object) FileResponse {
	resp := FileResponse{
		Key:  obj.Key,
		Name: obj.Name,
		URL:  obj.URL,
		Size: obj.Size,
	}
	if !obj.LastModified.IsZero() {
		v := obj.LastModified.UTC().Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
