package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"signupboard/internal/adapters/relay"
	"signupboard/internal/delivery/http/helpers"
	"signupboard/internal/domain"
)

// StartSetupRequest is the body for POST /guilds/{guildID}/setup.
type StartSetupRequest struct {
	AuthorID string `json:"author_id"`
}

// Validate implements Validator.
func (s StartSetupRequest) Validate() []string {
	if s.AuthorID == "" {
		return []string{"author_id is required"}
	}
	return nil
}

// SetupReplyRequest answers the prompt with sequence number Seq.
type SetupReplyRequest struct {
	Seq       int      `json:"seq"`
	UserID    string   `json:"user_id"`
	Text      string   `json:"text"`
	Values    []string `json:"values"`
	Confirmed bool     `json:"confirmed"`
	Skipped   bool     `json:"skipped"`
}

// Validate implements Validator.
func (s SetupReplyRequest) Validate() []string {
	var errs []string
	if s.Seq <= 0 {
		errs = append(errs, "seq must be positive")
	}
	if s.UserID == "" {
		errs = append(errs, "user_id is required")
	}
	return errs
}

// SetupStateSuccessResponse is the success envelope for the setup endpoints.
type SetupStateSuccessResponse struct {
	Data  relay.State       `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// SetupController exposes the setup wizard over HTTP. The wizard itself runs
// in the background; clients poll for the next prompt and post replies.
type SetupController struct {
	Logger     *slog.Logger
	Service    domain.SetupService
	Hub        *relay.Hub
	PromptWait time.Duration

	base context.Context
	runs sync.WaitGroup
}

// NewSetupController runs wizards under base, which should outlive requests.
func NewSetupController(base context.Context, logger *slog.Logger, svc domain.SetupService, hub *relay.Hub, promptWait time.Duration) *SetupController {
	return &SetupController{
		Logger:     logger,
		Service:    svc,
		Hub:        hub,
		PromptWait: promptWait,
		base:       base,
	}
}

// Wait blocks until every running wizard has returned.
func (c *SetupController) Wait() {
	c.runs.Wait()
}

// StartSetup godoc
// @Summary Start the event setup wizard
// @Description Reserves the guild's single wizard slot and returns the first prompt. Only one wizard may run per guild.
// @Tags setup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Param body body StartSetupRequest true "Operator starting the wizard"
// @Success 202 {object} controllers.SetupStateSuccessResponse "data contains the first prompt"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (wizard already running or event limit reached)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /guilds/{guildID}/setup [post]
func (c *SetupController) StartSetup(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	if guildID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing guildID")
		return
	}
	var req StartSetupRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	sess, err := c.Service.Begin(r.Context(), guildID, req.AuthorID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}

	prompter := c.Hub.Open(guildID, req.AuthorID)
	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		if _, err := c.Service.Run(c.base, sess, prompter); err != nil {
			c.Logger.Debug("setup ended without event", "guild_id", guildID, "err", err)
		}
	}()

	helpers.WriteJSONSuccess(w, http.StatusAccepted, c.await(r, prompter, 0))
}

// GetSetup godoc
// @Summary Poll the setup wizard
// @Description Long-polls until the wizard moves past the given sequence number, then returns the open prompt or the closing notice.
// @Tags setup
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Param after query int false "Last sequence number seen"
// @Success 200 {object} controllers.SetupStateSuccessResponse "data contains the prompt or notice"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /guilds/{guildID}/setup [get]
func (c *SetupController) GetSetup(w http.ResponseWriter, r *http.Request) {
	prompter, ok := c.session(w, r)
	if !ok {
		return
	}
	after := 0
	if s := r.URL.Query().Get("after"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, c.await(r, prompter, after))
}

// ReplySetup godoc
// @Summary Answer the current setup prompt
// @Description Delivers the operator's answer to the prompt identified by seq and returns the next prompt or the closing notice.
// @Tags setup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Param body body SetupReplyRequest true "Answer"
// @Success 200 {object} controllers.SetupStateSuccessResponse "data contains the next prompt or notice"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the wizard's author)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (stale seq)"
// @Router /guilds/{guildID}/setup/replies [post]
func (c *SetupController) ReplySetup(w http.ResponseWriter, r *http.Request) {
	prompter, ok := c.session(w, r)
	if !ok {
		return
	}
	var req SetupReplyRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.UserID != prompter.AuthorID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "only the operator who started the setup can answer")
		return
	}
	err := prompter.Reply(req.Seq, domain.Reply{
		Text:      req.Text,
		Values:    req.Values,
		Confirmed: req.Confirmed,
		Skipped:   req.Skipped,
	})
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, c.await(r, prompter, req.Seq))
}

// CancelSetup godoc
// @Summary Cancel the running setup wizard
// @Tags setup
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Success 200 {object} controllers.SetupStateSuccessResponse "data contains the closing notice"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (no prompt open)"
// @Router /guilds/{guildID}/setup [delete]
func (c *SetupController) CancelSetup(w http.ResponseWriter, r *http.Request) {
	prompter, ok := c.session(w, r)
	if !ok {
		return
	}
	seq := prompter.State().Seq
	if err := prompter.Cancel(); err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, c.await(r, prompter, seq))
}

func (c *SetupController) session(w http.ResponseWriter, r *http.Request) (*relay.Session, bool) {
	guildID := r.PathValue("guildID")
	if guildID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing guildID")
		return nil, false
	}
	prompter, ok := c.Hub.Get(guildID)
	if !ok {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "no setup in this guild")
		return nil, false
	}
	return prompter, true
}

func (c *SetupController) await(r *http.Request, prompter *relay.Session, after int) relay.State {
	ctx, cancel := context.WithTimeout(r.Context(), c.PromptWait)
	defer cancel()
	return prompter.Await(ctx, after)
}
