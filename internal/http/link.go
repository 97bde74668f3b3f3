package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filedrop/internal/service"
)

const invalidLinkRequest = "Invalid request. Key and expiry required."

// linkPayload keeps each field raw so a wrong JSON type can be told apart
// from a missing field.
type linkPayload struct {
	Key    json.RawMessage `json:"key"`
	Expiry json.RawMessage `json:"expiry"`
	Emails json.RawMessage `json:"emails"`
}

func (h *Handler) issueLink(c *gin.Context) {
	var payload linkPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": invalidLinkRequest})
		return
	}

	res, err := h.links.Issue(c.Request.Context(), payload.input())
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"message": vErr.Message})
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found."})
		default:
			h.logger.Errorf("issue link: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate URL"})
		}
		return
	}

	resp := gin.H{"url": res.Link.URL}
	switch {
	case res.EmailErr != nil:
		resp["error"] = "Failed to send email"
		resp["details"] = res.EmailErr.Error()
	case len(res.Recipients) > 0:
		resp["message"] = service.SentMessage(res.Recipients)
	}
	c.JSON(http.StatusOK, resp)
}

func (p linkPayload) input() service.LinkInput {
	var in service.LinkInput
	if !isNull(p.Key) {
		if err := json.Unmarshal(p.Key, &in.Key); err != nil {
			// a non-string key is reported as a missing key
			in.Key = ""
		}
	}
	if !isNull(p.Expiry) {
		var expiry float64
		if err := json.Unmarshal(p.Expiry, &expiry); err == nil {
			in.Expiry = &expiry
		}
	}
	if !isNull(p.Emails) {
		if err := json.Unmarshal(p.Emails, &in.Emails); err != nil {
			in.Emails = nil
			in.EmailsMalformed = true
		}
	}
	return in
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
