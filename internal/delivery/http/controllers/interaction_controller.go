package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"signupboard/internal/delivery/http/helpers"
	"signupboard/internal/domain"
)

// ClickRequest is the body the gateway forwards for a sign-up button press.
type ClickRequest struct {
	GuildID   string   `json:"guild_id"`
	ChannelID string   `json:"channel_id"`
	MessageID string   `json:"message_id"`
	CustomID  string   `json:"custom_id"`
	UserID    string   `json:"user_id"`
	Roles     []string `json:"roles"`
}

// Validate implements Validator.
func (c ClickRequest) Validate() []string {
	var errs []string
	if c.MessageID == "" {
		errs = append(errs, "message_id is required")
	}
	if c.CustomID == "" {
		errs = append(errs, "custom_id is required")
	}
	if c.UserID == "" {
		errs = append(errs, "user_id is required")
	}
	return errs
}

// ClickResponse tells the gateway what to show the clicking user and how the
// board now looks.
type ClickResponse struct {
	Outcome  domain.Outcome       `json:"outcome"`
	Category string               `json:"category"`
	From     string               `json:"from,omitempty"`
	Text     string               `json:"text"`
	Board    *domain.BoardMessage `json:"board"`
}

// ClickSuccessResponse is the success envelope for POST /interactions/clicks (200).
type ClickSuccessResponse struct {
	Data  ClickResponse     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type InteractionController struct {
	Logger  *slog.Logger
	Service domain.InteractionService
}

func NewInteractionController(logger *slog.Logger, svc domain.InteractionService) *InteractionController {
	return &InteractionController{
		Logger:  logger,
		Service: svc,
	}
}

// HandleClick godoc
// @Summary Apply a sign-up button press
// @Description Toggles, moves or adds the user in the clicked category and returns the text to show them plus the updated board.
// @Tags interactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param click body ClickRequest true "Click forwarded by the gateway"
// @Success 200 {object} controllers.ClickSuccessResponse "data contains the outcome and board"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (missing permitted role)"
// @Failure 409 {object} helpers.APIResponse "error.code: category_full"
// @Failure 410 {object} helpers.APIResponse "error.code: stale_interaction"
// @Failure 503 {object} helpers.APIResponse "error.code: not_ready"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /interactions/clicks [post]
func (c *InteractionController) HandleClick(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	res, err := c.Service.HandleClick(r.Context(), domain.Click{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		CustomID:  req.CustomID,
		UserID:    req.UserID,
		Roles:     req.Roles,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidFormat) {
			helpers.WriteJSONError(w, http.StatusGone, helpers.ErrCodeStaleInteraction, "This sign-up is no longer active.")
			return
		}
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ClickResponse{
		Outcome:  res.Outcome,
		Category: res.Category,
		From:     res.From,
		Text:     res.Text,
		Board:    res.Board,
	})
}
