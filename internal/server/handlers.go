package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/castwire/castwire/internal/domain"
	apperrors "github.com/castwire/castwire/internal/errors"
)

type ownerPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type metadataPayload struct {
	Title    string   `json:"title"`
	Genre    string   `json:"genre"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (m metadataPayload) toDomain() domain.SessionMetadata {
	return domain.SessionMetadata{
		Title:    m.Title,
		Genre:    m.Genre,
		Category: m.Category,
		Tags:     m.Tags,
	}
}

func parseOwner(p ownerPayload) (domain.OwnerRef, error) {
	kind := domain.OwnerKind(p.Kind)
	if kind != domain.OwnerUser && kind != domain.OwnerStage {
		return domain.OwnerRef{}, apperrors.ValidationError("owner kind must be user or stage")
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return domain.OwnerRef{}, apperrors.ValidationError("owner id must be a UUID")
	}
	return domain.OwnerRef{Kind: kind, ID: id}, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.gateway.ConnectionCount(),
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess := s.app.GetSession(c.Param("sessionKey"))
	if sess == nil {
		return respondError(c, apperrors.NotFoundError("session is not live"))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_key":      sess.Key,
		"viewer_count":     sess.ViewerCount,
		"cumulative_views": sess.CumulativeViews,
		"metadata":         sess.Metadata,
		"started_at":       sess.StartedAt,
	})
}

type ingestStartedPayload struct {
	SessionKey string          `json:"session_key"`
	Owner      ownerPayload    `json:"owner"`
	Metadata   metadataPayload `json:"metadata"`
}

func (s *Server) handleIngestStarted(c echo.Context) error {
	var payload ingestStartedPayload
	if err := c.Bind(&payload); err != nil {
		return respondError(c, apperrors.ValidationError("invalid request body"))
	}
	if payload.SessionKey == "" {
		return respondError(c, apperrors.ValidationError("session_key is required"))
	}

	owner, err := parseOwner(payload.Owner)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.app.HandleStreamStarted(c.Request().Context(), payload.SessionKey, owner, payload.Metadata.toDomain()); err != nil {
		slog.Error("Went-live signal failed", "session_key", payload.SessionKey, "error", err)
		return respondError(c, apperrors.InternalError("failed to start session", err))
	}

	return c.NoContent(http.StatusNoContent)
}

type ingestEndedPayload struct {
	SessionKey string `json:"session_key"`
}

func (s *Server) handleIngestEnded(c echo.Context) error {
	var payload ingestEndedPayload
	if err := c.Bind(&payload); err != nil {
		return respondError(c, apperrors.ValidationError("invalid request body"))
	}
	if payload.SessionKey == "" {
		return respondError(c, apperrors.ValidationError("session_key is required"))
	}

	s.app.HandleStreamEnded(c.Request().Context(), payload.SessionKey)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpdateMetadata(c echo.Context) error {
	var payload metadataPayload
	if err := c.Bind(&payload); err != nil {
		return respondError(c, apperrors.ValidationError("invalid request body"))
	}

	sessionKey := c.Param("sessionKey")
	err := s.app.UpdateSessionMetadata(c.Request().Context(), sessionKey, payload.toDomain())
	if errors.Is(err, domain.ErrUnknownSession) {
		return respondError(c, apperrors.NotFoundError("session is not live"))
	}
	if err != nil {
		return respondError(c, apperrors.InternalError("failed to update metadata", err))
	}
	return c.NoContent(http.StatusNoContent)
}

type createSchedulePayload struct {
	Owner             ownerPayload    `json:"owner"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	Metadata          metadataPayload `json:"metadata"`
	PrerecordedSource string          `json:"prerecorded_source"`
}

func (s *Server) handleCreateSchedule(c echo.Context) error {
	var payload createSchedulePayload
	if err := c.Bind(&payload); err != nil {
		return respondError(c, apperrors.ValidationError("invalid request body"))
	}

	owner, err := parseOwner(payload.Owner)
	if err != nil {
		return respondError(c, err)
	}
	if !payload.StartTime.Before(payload.EndTime) {
		return respondError(c, apperrors.ValidationError("start_time must be before end_time"))
	}

	entry, err := s.schedules.CreateEntry(c.Request().Context(), domain.ScheduledEntry{
		Owner:             owner,
		StartTime:         payload.StartTime,
		EndTime:           payload.EndTime,
		Metadata:          payload.Metadata.toDomain(),
		PrerecordedSource: payload.PrerecordedSource,
	})
	if err != nil {
		return respondError(c, apperrors.InternalError("failed to create scheduled entry", err))
	}

	return c.JSON(http.StatusCreated, map[string]any{"id": entry.ID})
}

func (s *Server) handleDeleteSchedule(c echo.Context) error {
	if err := s.schedules.DeleteEntry(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, apperrors.InternalError("failed to delete scheduled entry", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func respondError(c echo.Context, err error) error {
	structured := apperrors.AsStructuredError(err)
	return c.JSON(structured.HTTPStatus(), map[string]any{
		"error": structured.Message,
		"type":  structured.Type,
	})
}
