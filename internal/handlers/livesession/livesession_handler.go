// internal/handlers/livesession/livesession_handler.go
package livesession

import (
	"errors"
	"io"
	"net/http"

	wstypes "maproom-service/internal/domain/websocket"
	"maproom-service/internal/livesession"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	"maproom-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

type LiveSessionHandler struct {
	store *livesession.Store
	hub   *websocket.Hub
}

func NewLiveSessionHandler(store *livesession.Store, hub *websocket.Hub) *LiveSessionHandler {
	return &LiveSessionHandler{
		store: store,
		hub:   hub,
	}
}

type createSessionRequest struct {
	OrganizationID int64                  `json:"organization_id" binding:"required"`
	MapID          int64                  `json:"map_id" binding:"required"`
	Kind           livesession.Kind       `json:"kind" binding:"required,oneof=poll treasure_hunt group"`
	Title          string                 `json:"title" binding:"required,max=200"`
	Options        []string               `json:"options" binding:"omitempty,max=20,dive,max=200"`
	Payload        map[string]interface{} `json:"payload"`
}

type joinSessionRequest struct {
	DisplayName string `json:"display_name" binding:"max=100"`
}

type voteRequest struct {
	Choice *int `json:"choice" binding:"required"`
}

type updatePayloadRequest struct {
	Payload map[string]interface{} `json:"payload" binding:"required"`
}

// CreateSession starts a live session and returns its join code
func (h *LiveSessionHandler) CreateSession(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	if req.Kind == livesession.KindPoll && len(req.Options) < 2 {
		response.Error(c, http.StatusBadRequest, "a poll needs at least two options", nil)
		return
	}

	sess, err := h.store.Create(identityID, req.OrganizationID, req.MapID, req.Kind, req.Title, req.Options, req.Payload)
	if err != nil {
		response.FromError(c, "failed to create session", err)
		return
	}

	response.Success(c, http.StatusCreated, "session created", sess)
}

// JoinSession adds the caller as a participant
func (h *LiveSessionHandler) JoinSession(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	code := c.Param("code")

	// body is optional; joining with no display name is fine
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sess, err := h.store.Join(code, identityID, req.DisplayName)
	if err != nil {
		response.FromError(c, "failed to join session", err)
		return
	}

	h.broadcast(code, wstypes.EventTypeSessionJoin, &wstypes.SessionEventData{
		Code:   code,
		UserID: identityID,
	})

	response.Success(c, http.StatusOK, "joined session", sess)
}

// LeaveSession removes the caller from the session
func (h *LiveSessionHandler) LeaveSession(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	code := c.Param("code")

	if err := h.store.Leave(code, identityID); err != nil {
		response.FromError(c, "failed to leave session", err)
		return
	}

	h.broadcast(code, wstypes.EventTypeSessionLeave, &wstypes.SessionEventData{
		Code:   code,
		UserID: identityID,
	})

	response.Success(c, http.StatusOK, "left session", nil)
}

// Vote records a poll choice and pushes the new tally to participants
func (h *LiveSessionHandler) Vote(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	code := c.Param("code")

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sess, err := h.store.Vote(code, identityID, *req.Choice)
	if err != nil {
		response.FromError(c, "failed to record vote", err)
		return
	}

	h.broadcast(code, wstypes.EventTypePollVote, &wstypes.SessionEventData{
		Code:    code,
		UserID:  identityID,
		Payload: map[string]interface{}{"counts": sess.VoteCounts()},
	})

	response.Success(c, http.StatusOK, "vote recorded", gin.H{"counts": sess.VoteCounts()})
}

// UpdatePayload replaces the kind-specific state (host only)
func (h *LiveSessionHandler) UpdatePayload(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	code := c.Param("code")

	var req updatePayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sess, err := h.store.UpdatePayload(code, identityID, req.Payload)
	if err != nil {
		response.FromError(c, "failed to update session", err)
		return
	}

	h.broadcast(code, wstypes.EventTypeSessionState, &wstypes.SessionEventData{
		Code:    code,
		Payload: sess.Payload,
	})

	response.Success(c, http.StatusOK, "session updated", sess)
}

// GetSession returns a snapshot of the session state
func (h *LiveSessionHandler) GetSession(c *gin.Context) {
	code := c.Param("code")

	sess, err := h.store.Snapshot(code)
	if err != nil {
		response.FromError(c, "session not found", err)
		return
	}

	response.Success(c, http.StatusOK, "session retrieved", sess)
}

// CloseSession ends the session (host only)
func (h *LiveSessionHandler) CloseSession(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	code := c.Param("code")

	// resolve the roster before closing so everyone hears the final event
	participantIDs, err := h.store.ParticipantIDs(code)
	if err != nil {
		response.FromError(c, "session not found", err)
		return
	}

	sess, err := h.store.Close(code, identityID)
	if err != nil {
		response.FromError(c, "failed to close session", err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastSessionEvent(participantIDs, wstypes.EventTypeSessionClosed, &wstypes.SessionEventData{
			Code: code,
		})
	}

	response.Success(c, http.StatusOK, "session closed", sess)
}

func (h *LiveSessionHandler) broadcast(code string, eventType wstypes.EventType, data *wstypes.SessionEventData) {
	if h.hub == nil {
		return
	}
	participantIDs, err := h.store.ParticipantIDs(code)
	if err != nil {
		return
	}
	h.hub.BroadcastSessionEvent(participantIDs, eventType, data)
}
