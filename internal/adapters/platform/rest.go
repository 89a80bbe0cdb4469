package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"signupboard/internal/domain"
)

const (
	embedColor      = 0xF1C40F
	buttonsPerRow   = 5
	channelTypeText = 0
	channelTypeNews = 5
)

var buttonStyles = map[domain.ButtonStyle]int{
	domain.StyleBlurple: 1,
	domain.StyleGrey:    2,
	domain.StyleGreen:   3,
	domain.StyleRed:     4,
}

type restClient struct {
	client  *http.Client
	baseURL string
	token   string
	fields  domain.FieldRenderer
}

// NewRESTClient returns a Platform backed by the platform's v10 HTTP API.
func NewRESTClient(client *http.Client, baseURL, token string, fields domain.FieldRenderer) domain.Platform {
	if client == nil {
		client = http.DefaultClient
	}
	return &restClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		fields:  fields,
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
}

type emoji struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

type component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	Emoji      *emoji      `json:"emoji,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Components []component `json:"components,omitempty"`
}

type messagePayload struct {
	Content    string       `json:"content,omitempty"`
	Embeds     []embed      `json:"embeds,omitempty"`
	Components *[]component `json:"components,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *restClient) SendBoard(ctx context.Context, channelID string, board *domain.BoardMessage) (string, error) {
	payload, err := c.boardPayload(board)
	if err != nil {
		return "", err
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", payload, &msg); err != nil {
		return "", fmt.Errorf("send board: %w", err)
	}
	return msg.ID, nil
}

func (c *restClient) EditBoard(ctx context.Context, channelID, messageID string, board *domain.BoardMessage) error {
	payload, err := c.boardPayload(board)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPatch, messagePath(channelID, messageID), payload, nil); err != nil {
		return fmt.Errorf("edit board: %w", err)
	}
	return nil
}

func (c *restClient) StripControls(ctx context.Context, channelID, messageID string) error {
	none := []component{}
	if err := c.do(ctx, http.MethodPatch, messagePath(channelID, messageID), messagePayload{Components: &none}, nil); err != nil {
		return fmt.Errorf("strip controls: %w", err)
	}
	return nil
}

func (c *restClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.do(ctx, http.MethodDelete, messagePath(channelID, messageID), nil, nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (c *restClient) PostMessage(ctx context.Context, channelID, content string) error {
	if err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", messagePayload{Content: content}, nil); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

func (c *restClient) Member(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	var m struct {
		User struct {
			ID         string `json:"id"`
			Username   string `json:"username"`
			GlobalName string `json:"global_name"`
		} `json:"user"`
		Nick  string   `json:"nick"`
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+url.PathEscape(guildID)+"/members/"+url.PathEscape(userID), nil, &m); err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	name := m.Nick
	if name == "" {
		name = m.User.GlobalName
	}
	if name == "" {
		name = m.User.Username
	}
	return &domain.Member{ID: m.User.ID, DisplayName: name, Roles: m.Roles}, nil
}

func (c *restClient) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type int    `json:"type"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+url.PathEscape(guildID)+"/channels", nil, &raw); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]domain.Channel, 0, len(raw))
	for _, ch := range raw {
		if ch.Type == channelTypeText || ch.Type == channelTypeNews {
			out = append(out, domain.Channel{ID: ch.ID, Name: ch.Name})
		}
	}
	return out, nil
}

// Roles lists assignable roles, leaving out @everyone and integration roles.
func (c *restClient) Roles(ctx context.Context, guildID string) ([]domain.GuildRole, error) {
	var raw []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Managed bool   `json:"managed"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+url.PathEscape(guildID)+"/roles", nil, &raw); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]domain.GuildRole, 0, len(raw))
	for _, r := range raw {
		if r.ID == guildID || r.Managed {
			continue
		}
		out = append(out, domain.GuildRole{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (c *restClient) boardPayload(board *domain.BoardMessage) (messagePayload, error) {
	e := embed{Title: board.Title, Description: board.Description, Color: embedColor}
	if len(board.PermittedRoles) > 0 {
		mentions := make([]string, 0, len(board.PermittedRoles))
		for _, id := range board.PermittedRoles {
			mentions = append(mentions, "<@&"+id+">")
		}
		e.Fields = append(e.Fields, embedField{Name: "Allowed roles", Value: strings.Join(mentions, ", ")})
	}
	if board.Expiry != nil {
		ts := board.Expiry.Unix()
		e.Fields = append(e.Fields, embedField{Name: "Event start", Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", ts, ts)})
	}
	for _, f := range board.Fields {
		value, err := c.fields.RenderField(f)
		if err != nil {
			return messagePayload{}, err
		}
		e.Fields = append(e.Fields, embedField{Name: f.Header(), Value: value, Inline: true})
	}

	rows := []component{}
	for i, ctrl := range board.Controls {
		if i%buttonsPerRow == 0 {
			rows = append(rows, component{Type: 1})
		}
		row := &rows[len(rows)-1]
		row.Components = append(row.Components, component{
			Type:     2,
			Style:    buttonStyles[ctrl.Style],
			Label:    ctrl.Label,
			Emoji:    parseEmoji(ctrl.Emoji),
			CustomID: ctrl.CustomID(),
		})
	}
	return messagePayload{Embeds: []embed{e}, Components: &rows}, nil
}

// parseEmoji accepts unicode emoji and custom "<:name:id>" or "<a:name:id>".
func parseEmoji(s string) *emoji {
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		parts := strings.Split(strings.Trim(s, "<>"), ":")
		if len(parts) == 3 {
			return &emoji{ID: parts[2], Name: parts[1], Animated: parts[0] == "a"}
		}
	}
	return &emoji{Name: s}
}

func messagePath(channelID, messageID string) string {
	return "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
}

func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (signupboard, 1.0)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrForbidden)
		default:
			return fmt.Errorf("platform api returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
