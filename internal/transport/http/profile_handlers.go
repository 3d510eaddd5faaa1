package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/store"
)

// ProfileHandlers serves the public profile endpoints.
type ProfileHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewProfileHandlers creates a new profile handlers instance.
func NewProfileHandlers(st store.Store, logger *zerolog.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		store: st,
		log:   logger,
	}
}

// ProfileResponse represents a public profile in API responses. The password
// hash never leaves the store layer through this path.
type ProfileResponse struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Role        string  `json:"role"`
	DisplayName string  `json:"display_name"`
	Bio         string  `json:"bio"`
	Rating      float64 `json:"rating"`
	JobsDone    int64   `json:"jobs_done"`
	MemberSince string  `json:"member_since"`
}

// ClientProfile handles public client profile reads.
// GET /api/profile/client/:user_id
func (h *ProfileHandlers) ClientProfile(c *gin.Context) {
	h.profile(c, store.RoleClient)
}

// CleanerProfile handles public cleaner profile reads.
// GET /api/profile/cleaner/:user_id
func (h *ProfileHandlers) CleanerProfile(c *gin.Context) {
	h.profile(c, store.RoleCleaner)
}

func (h *ProfileHandlers) profile(c *gin.Context, role store.Role) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	user, err := h.store.GetProfile(c.Request.Context(), userID, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		ID:          user.ID,
		Username:    user.Username,
		Role:        string(user.Role),
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		Rating:      user.Rating,
		JobsDone:    user.JobsDone,
		MemberSince: user.CreatedAt.Format(time.RFC3339),
	})
}
