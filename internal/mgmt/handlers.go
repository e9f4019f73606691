package mgmt

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/health"
	"github.com/focuslabs/focusbot/internal/store"
)

// ContactAnswerer delivers a stored answer back to the user who wrote
// the contact message.
type ContactAnswerer interface {
	Send(ctx context.Context, user *store.User, text string) error
}

// Handlers implements the management API endpoints.
type Handlers struct {
	store    *store.Store
	checker  *health.Checker
	answerer ContactAnswerer
	logger   zerolog.Logger
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(st *store.Store, checker *health.Checker, answerer ContactAnswerer, logger zerolog.Logger) *Handlers {
	return &Handlers{store: st, checker: checker, answerer: answerer, logger: logger}
}

// Liveness always answers ok while the process runs.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness runs the registered health checks.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker != nil && !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

type userDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username,omitempty"`
	Status         string `json:"status"`
	FocusMinutes   int    `json:"focus_minutes"`
	RestMinutes    int    `json:"rest_minutes"`
	BigRestMinutes int    `json:"big_rest_minutes"`
	SessionCount   int    `json:"session_count"`
	CurrentFocusID string `json:"current_focus_id,omitempty"`
	CurrentRestID  string `json:"current_rest_id,omitempty"`
	FirstFocusDone bool   `json:"first_focus_done"`
	CreatedAt      string `json:"created_at"`
}

func toUserDTO(u *store.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Name:           u.Name(),
		Username:       u.Username,
		Status:         u.Status,
		FocusMinutes:   int(u.FocusLength.Minutes()),
		RestMinutes:    int(u.RestLength.Minutes()),
		BigRestMinutes: int(u.BigRestLength.Minutes()),
		SessionCount:   u.SessionCount,
		CurrentFocusID: u.CurrentFocusID,
		CurrentRestID:  u.CurrentRestID,
		FirstFocusDone: u.FirstFocusDone,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListUsers returns users, optionally filtered by status.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.store.ListUsers(c.Query("status"), queryLimit(c))
	if err != nil {
		return err
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	return c.JSON(fiber.Map{"users": out, "count": len(out)})
}

// GetUser returns one user.
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	u, err := h.store.GetUser(c.Params("id"))
	if errors.Is(err, botErrors.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", "no such user")
	}
	if err != nil {
		return err
	}
	return c.JSON(toUserDTO(u))
}

type activityDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Kind        string `json:"kind"`
	ProjectID   string `json:"project_id,omitempty"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	EndedAt     string `json:"ended_at,omitempty"`
	PlannedSecs int    `json:"planned_secs"`
	RealSecs    int    `json:"real_secs"`
}

// ListActivities returns activities filtered by kind and status.
func (h *Handlers) ListActivities(c *fiber.Ctx) error {
	activities, err := h.store.ListActivities(store.ActivityFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Limit:  queryLimit(c),
	})
	if err != nil {
		return err
	}

	out := make([]activityDTO, 0, len(activities))
	for _, a := range activities {
		dto := activityDTO{
			ID:          a.ID,
			UserID:      a.UserID,
			Kind:        a.Kind,
			ProjectID:   a.ProjectID,
			Status:      a.Status,
			StartedAt:   a.StartedAt.UTC().Format(time.RFC3339),
			PlannedSecs: int(a.Duration.Seconds()),
			RealSecs:    int(a.RealDuration().Seconds()),
		}
		if a.EndedAt != nil {
			dto.EndedAt = a.EndedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, dto)
	}
	return c.JSON(fiber.Map{"activities": out, "count": len(out)})
}

// Summary returns the same entity and active counts the admin dialogue
// shows.
func (h *Handlers) Summary(c *fiber.Ctx) error {
	users, err := h.store.CountUsers()
	if err != nil {
		return err
	}
	focus, err := h.store.CountActivities(store.ActivityFocus, "")
	if err != nil {
		return err
	}
	rest, err := h.store.CountActivities(store.ActivityRest, "")
	if err != nil {
		return err
	}
	activeFocus, err := h.store.CountActivities(store.ActivityFocus, store.ActivityStarted)
	if err != nil {
		return err
	}
	activeRest, err := h.store.CountActivities(store.ActivityRest, store.ActivityStarted)
	if err != nil {
		return err
	}
	pendingJobs, err := h.store.CountPendingJobs()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"users":        users,
		"focus":        focus,
		"rests":        rest,
		"active_focus": activeFocus,
		"active_rests": activeRest,
		"pending_jobs": pendingJobs,
	})
}

type contactDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Answer    string `json:"answer,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ListContacts returns contact messages, optionally filtered by status.
func (h *Handlers) ListContacts(c *fiber.Ctx) error {
	contacts, err := h.store.ListContacts(c.Query("status"), queryLimit(c))
	if err != nil {
		return err
	}
	out := make([]contactDTO, 0, len(contacts))
	for _, ct := range contacts {
		out = append(out, contactDTO{
			ID:        ct.ID,
			UserID:    ct.UserID,
			Message:   ct.Message,
			Answer:    ct.Answer,
			Status:    ct.Status,
			CreatedAt: ct.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"contacts": out, "count": len(out)})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// AnswerContact stores the answer and delivers it to the author.
func (h *Handlers) AnswerContact(c *fiber.Ctx) error {
	var req answerRequest
	if err := c.BodyParser(&req); err != nil || req.Answer == "" {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", "answer is required")
	}

	id := c.Params("id")
	contact, err := h.store.GetContact(id)
	if errors.Is(err, botErrors.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", "no such contact")
	}
	if err != nil {
		return err
	}

	if err := h.store.AnswerContact(id, req.Answer); err != nil {
		return err
	}

	if h.answerer != nil {
		user, err := h.store.GetUser(contact.UserID)
		if err == nil {
			if sendErr := h.answerer.Send(c.Context(), user, req.Answer); sendErr != nil {
				h.logger.Warn().Err(sendErr).Str("contact_id", id).Msg("answer delivery failed")
			}
		}
	}
	return c.JSON(fiber.Map{"status": store.ContactAnswered})
}

type broadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// CreateBroadcast queues an announcement; the broadcast worker picks
// it up.
func (h *Handlers) CreateBroadcast(c *fiber.Ctx) error {
	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", "message is required")
	}

	b := &store.Broadcast{Title: req.Title, Message: req.Message}
	if err := h.store.CreateBroadcast(b); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": b.ID, "status": b.Status})
}

// GetBroadcast returns one broadcast.
func (h *Handlers) GetBroadcast(c *fiber.Ctx) error {
	b, err := h.store.GetBroadcast(c.Params("id"))
	if errors.Is(err, botErrors.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", "no such broadcast")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":         b.ID,
		"category":   b.Category,
		"status":     b.Status,
		"title":      b.Title,
		"message":    b.Message,
		"created_at": b.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
