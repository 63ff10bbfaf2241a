// Package views renders localized texts and keyboards for complaints and
// wizard steps. It holds no state besides its configuration.
package views

import (
	"strconv"
	"strings"
	"time"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/wizard"
)

// TimeLayout is used for every timestamp shown to users.
const TimeLayout = "02.01.2006 15:04"

// Admin callback payloads.
const (
	AdminPrefix         = "adm:"
	AdminFilterPrefix   = "adm:filter:"
	AdminStatusPrefix   = "adm:status:"
	AdminExport         = "adm:export"
	AdminBroadcastStart = "adm:bc:start"
	AdminBroadcastSend  = "adm:bc:send"
	AdminBroadcastStop  = "adm:bc:cancel"

	LanguagePrefix = "lang:"
)

// StatusCodes maps the short codes used in status callbacks.
var StatusCodes = map[string]models.Status{
	"p": models.StatusPending,
	"i": models.StatusInProgress,
	"r": models.StatusResolved,
}

// Languages offered by the language picker.
var Languages = []messaging.Button{
	{Text: "🇺🇿 O'zbekcha", Data: LanguagePrefix + "uz"},
	{Text: "🇷🇺 Русский", Data: LanguagePrefix + "ru"},
}

// Renderer turns domain values into messages.
type Renderer struct {
	loc      *localization.Localizer
	sections []config.Section
	location *time.Location
}

// NewRenderer creates a renderer. A nil location means UTC.
func NewRenderer(loc *localization.Localizer, sections []config.Section, location *time.Location) *Renderer {
	if location == nil {
		location = time.UTC
	}
	return &Renderer{loc: loc, sections: sections, location: location}
}

// Localizer exposes the underlying string table.
func (r *Renderer) Localizer() *localization.Localizer { return r.loc }

// Text renders key in lang.
func (r *Renderer) Text(lang, key string, fields localization.Fields) string {
	return r.loc.Format(lang, key, fields)
}

// Time formats t in the configured zone.
func (r *Renderer) Time(t time.Time) string {
	return t.In(r.location).Format(TimeLayout)
}

// Location is the configured display zone.
func (r *Renderer) Location() *time.Location { return r.location }

// SectionLabel returns the button label of a tag, or the tag itself.
func (r *Renderer) SectionLabel(tag string) string {
	for _, s := range r.sections {
		if s.Tag == tag {
			return s.Label
		}
	}
	return tag
}

// SectionTag resolves the index carried by a section button.
func (r *Renderer) SectionTag(rawIdx string) (string, bool) {
	i, err := strconv.Atoi(rawIdx)
	if err != nil || i < 0 || i >= len(r.sections) {
		return "", false
	}
	return r.sections[i].Tag, true
}

func (r *Renderer) media(lang string, n int) string {
	if n == 0 {
		return r.Text(lang, "mediaNone", nil)
	}
	return r.Text(lang, "mediaCount", localization.Fields{"count": n})
}

func (r *Renderer) nationalIDLine(lang, id string) string {
	if id == "" {
		return ""
	}
	return r.Text(lang, "confirmNationalId", localization.Fields{"national_id": id})
}

// Confirm renders the review of a draft.
func (r *Renderer) Confirm(lang string, d wizard.Draft) string {
	return r.Text(lang, "confirm", localization.Fields{
		"name":             d.FullName,
		"address":          d.Address,
		"phone":            d.Phone,
		"national_id_line": r.nationalIDLine(lang, d.NationalID),
		"section":          r.SectionLabel(d.Section),
		"summary":          d.Summary,
		"media":            r.media(lang, len(d.Media)),
	})
}

// Card is the complaint summary sent to admins and the staff group.
func (r *Renderer) Card(lang string, c *models.Complaint) string {
	handle := c.SubmitterHandle
	if handle == "" {
		handle = r.Text(lang, "unknownHandle", nil)
	}
	return r.Text(lang, "complaintCard", localization.Fields{
		"id":               c.ID,
		"name":             c.FullName,
		"handle":           handle,
		"address":          c.Address,
		"phone":            c.Phone,
		"national_id_line": r.nationalIDLine(lang, c.NationalID),
		"section":          r.SectionLabel(c.Section),
		"summary":          c.Summary,
		"time":             r.Time(c.CreatedAt),
		"media":            r.media(lang, len(c.Media)),
	})
}

// Caption tags every media item of a delivery.
func (r *Renderer) Caption(lang string, c *models.Complaint) string {
	return r.Text(lang, "mediaCaption", localization.Fields{"id": c.ID})
}

// UserList renders a submitter's own complaints.
func (r *Renderer) UserList(lang string, complaints []models.Complaint) string {
	items := make([]string, len(complaints))
	for i, c := range complaints {
		items[i] = r.Text(lang, "myComplaintsItem", localization.Fields{
			"id":      c.ID,
			"section": r.SectionLabel(c.Section),
			"summary": c.Summary,
			"status":  c.Status,
			"time":    r.Time(c.CreatedAt),
		})
	}
	return r.Text(lang, "myComplaints", localization.Fields{"list": strings.Join(items, "\n\n")})
}

// SectionList renders the admin view of one section.
func (r *Renderer) SectionList(lang, section string, complaints []models.Complaint) string {
	items := make([]string, len(complaints))
	for i, c := range complaints {
		items[i] = r.Text(lang, "sectionListItem", localization.Fields{
			"id":     c.ID,
			"name":   c.FullName,
			"status": c.Status,
			"time":   r.Time(c.CreatedAt),
		})
	}
	return r.Text(lang, "sectionList", localization.Fields{
		"section": r.SectionLabel(section),
		"list":    strings.Join(items, "\n\n"),
	})
}

// Prompt returns the question and keyboard for step.
func (r *Renderer) Prompt(lang string, step wizard.Step, d wizard.Draft) (string, *messaging.Keyboard) {
	if step == wizard.StepConfirm {
		return r.Confirm(lang, d), r.ConfirmKeyboard(lang)
	}
	return r.Text(lang, step.PromptKey(), nil), r.StepKeyboard(lang, step)
}

// StepKeyboard is the keyboard shown while a step waits for input.
func (r *Renderer) StepKeyboard(lang string, step wizard.Step) *messaging.Keyboard {
	back := messaging.Button{Text: r.Text(lang, "btnBack", nil)}
	cancel := messaging.Button{Text: r.Text(lang, "btnCancel", nil)}

	switch step {
	case wizard.StepName, wizard.StepEditSummary:
		return &messaging.Keyboard{Rows: [][]messaging.Button{{cancel}}}
	case wizard.StepPhone:
		share := messaging.Button{Text: r.Text(lang, "btnSharePhone", nil), RequestContact: true}
		return &messaging.Keyboard{Rows: [][]messaging.Button{{share}, {back, cancel}}}
	case wizard.StepMedia:
		done := messaging.Button{Text: r.Text(lang, "btnDone", nil)}
		return &messaging.Keyboard{Rows: [][]messaging.Button{{done}, {back, cancel}}}
	case wizard.StepSection:
		return r.SectionKeyboard(lang)
	case wizard.StepConfirm:
		return r.ConfirmKeyboard(lang)
	}
	return &messaging.Keyboard{Rows: [][]messaging.Button{{back, cancel}}}
}

// SectionKeyboard lays sections out two per row with back and cancel last.
func (r *Renderer) SectionKeyboard(lang string) *messaging.Keyboard {
	return r.sectionGrid(wizard.SectionButton, messaging.Row(
		messaging.Button{Text: r.Text(lang, "btnBack", nil), Data: wizard.ButtonBack},
		messaging.Button{Text: r.Text(lang, "btnCancel", nil), Data: wizard.ButtonCancel},
	))
}

func (r *Renderer) sectionGrid(data func(int) string, last []messaging.Button) *messaging.Keyboard {
	var rows [][]messaging.Button
	for i := 0; i < len(r.sections); i += 2 {
		row := []messaging.Button{{Text: r.sections[i].Label, Data: data(i)}}
		if i+1 < len(r.sections) {
			row = append(row, messaging.Button{Text: r.sections[i+1].Label, Data: data(i + 1)})
		}
		rows = append(rows, row)
	}
	if len(last) > 0 {
		rows = append(rows, last)
	}
	return messaging.InlineKeyboard(rows...)
}

// ConfirmKeyboard offers submit, edit and cancel.
func (r *Renderer) ConfirmKeyboard(lang string) *messaging.Keyboard {
	return messaging.InlineKeyboard(
		messaging.Row(
			messaging.Button{Text: r.Text(lang, "btnSubmit", nil), Data: wizard.ButtonSubmit},
			messaging.Button{Text: r.Text(lang, "btnEdit", nil), Data: wizard.ButtonEdit},
		),
		messaging.Row(messaging.Button{Text: r.Text(lang, "btnCancel", nil), Data: wizard.ButtonCancel}),
	)
}

// LanguageKeyboard is the locale picker.
func (r *Renderer) LanguageKeyboard() *messaging.Keyboard {
	return messaging.InlineKeyboard(messaging.Row(Languages...))
}

// RemoveKeyboard hides the wizard reply keyboard.
func RemoveKeyboard() *messaging.Keyboard {
	return &messaging.Keyboard{Remove: true}
}

// DashboardKeyboard lists section filters plus export and broadcast.
func (r *Renderer) DashboardKeyboard(lang string) *messaging.Keyboard {
	return r.sectionGrid(func(i int) string { return AdminFilterPrefix + strconv.Itoa(i) }, messaging.Row(
		messaging.Button{Text: r.Text(lang, "btnExport", nil), Data: AdminExport},
		messaging.Button{Text: r.Text(lang, "btnBroadcast", nil), Data: AdminBroadcastStart},
	))
}

// StatusKeyboard offers the three status transitions for one complaint.
func (r *Renderer) StatusKeyboard(lang, complaintID string) *messaging.Keyboard {
	data := func(code string) string { return AdminStatusPrefix + complaintID + ":" + code }
	return messaging.InlineKeyboard(messaging.Row(
		messaging.Button{Text: r.Text(lang, "btnStatusPending", nil), Data: data("p")},
		messaging.Button{Text: r.Text(lang, "btnStatusInProgress", nil), Data: data("i")},
		messaging.Button{Text: r.Text(lang, "btnStatusResolved", nil), Data: data("r")},
	))
}

// BroadcastKeyboard confirms or cancels a pending broadcast.
func (r *Renderer) BroadcastKeyboard(lang string) *messaging.Keyboard {
	return messaging.InlineKeyboard(messaging.Row(
		messaging.Button{Text: r.Text(lang, "btnBroadcastSend", nil), Data: AdminBroadcastSend},
		messaging.Button{Text: r.Text(lang, "btnCancel", nil), Data: AdminBroadcastStop},
	))
}

// ButtonData maps the label of a reply keyboard key, in any language, back
// to its wizard payload.
func (r *Renderer) ButtonData(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, lang := range []string{"uz", "ru", r.loc.Fallback()} {
		switch text {
		case r.Text(lang, "btnBack", nil):
			return wizard.ButtonBack, true
		case r.Text(lang, "btnCancel", nil):
			return wizard.ButtonCancel, true
		case r.Text(lang, "btnDone", nil):
			return wizard.ButtonDone, true
		}
	}
	return "", false
}
