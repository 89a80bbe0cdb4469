package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Control is a button bound to one category of one event.
type Control struct {
	EventID  string      `json:"event_id"`
	Category string      `json:"category"`
	Emoji    string      `json:"emoji"`
	Label    string      `json:"label"`
	Style    ButtonStyle `json:"style"`
}

// CustomID is the identifier the platform echoes back on click.
func (c Control) CustomID() string {
	return c.EventID + ":" + c.Category
}

// ParseCustomID splits "<event_id>:<category>". Category names may contain colons.
func ParseCustomID(id string) (eventID, category string, err error) {
	eventID, category, ok := strings.Cut(id, ":")
	if !ok || eventID == "" || category == "" {
		return "", "", NewInputError("custom_id", fmt.Sprintf("%q is not <event>:<category>", id))
	}
	return eventID, category, nil
}

// ControlsFor builds one control per category in definition order.
func ControlsFor(e *Event) []Control {
	controls := make([]Control, 0, len(e.Categories))
	for _, c := range e.Categories {
		label := c.Label
		if label == "" {
			label = c.Name
		}
		controls = append(controls, Control{
			EventID:  e.ID,
			Category: c.Name,
			Emoji:    c.Emoji,
			Label:    label,
			Style:    c.Style,
		})
	}
	return controls
}

// BoardField is the displayed state of one category.
type BoardField struct {
	Category  string   `json:"category"`
	Count     int      `json:"count"`
	Capacity  *int     `json:"capacity,omitempty"`
	Members   []string `json:"members"`
	Truncated bool     `json:"truncated"`
}

// Header renders "<name> (<count>/<cap or ∞>)".
func (f BoardField) Header() string {
	limit := "∞"
	if f.Capacity != nil {
		limit = strconv.Itoa(*f.Capacity)
	}
	return fmt.Sprintf("%s (%d/%s)", f.Category, f.Count, limit)
}

// BoardMessage is everything needed to render the published message.
type BoardMessage struct {
	EventID        string       `json:"event_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Expiry         *time.Time   `json:"expiry,omitempty"`
	PermittedRoles []string     `json:"permitted_roles,omitempty"`
	Fields         []BoardField `json:"fields"`
	Controls       []Control    `json:"controls"`
}

// BuildBoard projects e onto its display. Only the first DisplayedMembers
// members are listed per category.
func BuildBoard(e *Event) *BoardMessage {
	b := &BoardMessage{
		EventID:        e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Expiry:         e.Expiry,
		PermittedRoles: e.PermittedRoles,
		Fields:         make([]BoardField, 0, len(e.Categories)),
		Controls:       ControlsFor(e),
	}
	for _, c := range e.Categories {
		shown := c.Members
		if len(shown) > DisplayedMembers {
			shown = shown[:DisplayedMembers]
		}
		b.Fields = append(b.Fields, BoardField{
			Category:  c.Name,
			Count:     len(c.Members),
			Capacity:  c.Capacity,
			Members:   append([]string{}, shown...),
			Truncated: len(c.Members) > DisplayedMembers,
		})
	}
	return b
}

// RosterLine lists the resolved members of one category at expiry.
type RosterLine struct {
	Category string
	Mentions []string
}

// Roster is the summary posted when an event expires.
type Roster struct {
	Title string
	Lines []RosterLine
}

// RosterRenderer turns a roster into message text.
type RosterRenderer interface {
	RenderRoster(r Roster) (string, error)
}

// FieldRenderer renders the body of one board field.
type FieldRenderer interface {
	RenderField(f BoardField) (string, error)
}
