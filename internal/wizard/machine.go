package wizard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/models"
)

var (
	phonePattern      = regexp.MustCompile(`^\+998\d{9}$`)
	nationalIDPattern = regexp.MustCompile(`^[A-Z]{2}\d{7}$`)
)

type stepFunc func(m *Machine, d Draft, in Input) Result

// Machine sequences the intake steps. It is safe for concurrent use since
// it holds no per-conversation state.
type Machine struct {
	RequireNationalID bool
	Sections          []config.Section

	sequence []Step
	steps    map[Step]stepFunc
}

// NewMachine builds the step table for the given deployment flags.
func NewMachine(requireNationalID bool, sections []config.Section) *Machine {
	m := &Machine{
		RequireNationalID: requireNationalID,
		Sections:          sections,
	}
	m.sequence = []Step{StepName, StepAddress, StepPhone}
	if requireNationalID {
		m.sequence = append(m.sequence, StepNationalID)
	}
	m.sequence = append(m.sequence, StepSection, StepSummary, StepMedia, StepConfirm)

	m.steps = map[Step]stepFunc{
		StepName:        (*Machine).name,
		StepAddress:     (*Machine).address,
		StepPhone:       (*Machine).phone,
		StepNationalID:  (*Machine).nationalID,
		StepSection:     (*Machine).section,
		StepSummary:     (*Machine).summary,
		StepMedia:       (*Machine).media,
		StepConfirm:     (*Machine).confirm,
		StepEditSummary: (*Machine).editSummary,
	}
	return m
}

// Sequence returns the ordered wizard steps for this deployment.
func (m *Machine) Sequence() []Step {
	out := make([]Step, len(m.sequence))
	copy(out, m.sequence)
	return out
}

// First is the step a new conversation starts at.
func (m *Machine) First() Step { return m.sequence[0] }

// Next applies one input to the conversation at step. The returned draft is
// always a fresh copy.
func (m *Machine) Next(step Step, draft Draft, in Input) Result {
	draft = draft.Clone()

	if in.Kind == InputText && strings.HasPrefix(strings.TrimSpace(in.Text), "/") {
		return ignore(step, draft)
	}

	fn, ok := m.steps[step]
	if !ok || (step == StepNationalID && !m.RequireNationalID) {
		return ignore(step, draft)
	}

	if in.Kind == InputButton {
		switch in.Text {
		case ButtonCancel:
			return Result{Next: StepNone, Draft: Draft{}, Effect: EffectCancel}
		case ButtonBack:
			return m.back(step, draft)
		}
	}

	return fn(m, draft, in)
}

func (m *Machine) back(step Step, draft Draft) Result {
	if step == StepEditSummary {
		return Result{Next: StepNone, Draft: Draft{}, Effect: EffectCancel}
	}
	prev, ok := m.previous(step)
	if !ok {
		return ignore(step, draft)
	}
	return Result{Next: prev, Draft: draft, Effect: EffectPrompt}
}

func (m *Machine) previous(step Step) (Step, bool) {
	for i, s := range m.sequence {
		if s == step && i > 0 {
			return m.sequence[i-1], true
		}
	}
	return StepNone, false
}

func (m *Machine) after(step Step) Step {
	for i, s := range m.sequence {
		if s == step && i+1 < len(m.sequence) {
			return m.sequence[i+1]
		}
	}
	return StepNone
}

func (m *Machine) advance(step Step, draft Draft) Result {
	return Result{Next: m.after(step), Draft: draft, Effect: EffectPrompt}
}

func (m *Machine) name(d Draft, in Input) Result {
	text, ok := longText(in, config.MinNameLength)
	if !ok {
		return reject(StepName, d, "invalidName")
	}
	d.FullName = text
	d.Handle = in.Handle
	return m.advance(StepName, d)
}

func (m *Machine) address(d Draft, in Input) Result {
	text, ok := longText(in, config.MinAddressLength)
	if !ok {
		return reject(StepAddress, d, "invalidAddress")
	}
	d.Address = text
	return m.advance(StepAddress, d)
}

func (m *Machine) phone(d Draft, in Input) Result {
	switch in.Kind {
	case InputContact:
		if in.Text == "" {
			return reject(StepPhone, d, "invalidPhone")
		}
		d.Phone = in.Text
	case InputText:
		text := strings.TrimSpace(in.Text)
		if !phonePattern.MatchString(text) {
			return reject(StepPhone, d, "invalidPhone")
		}
		d.Phone = text
	default:
		return reject(StepPhone, d, "invalidPhone")
	}
	return m.advance(StepPhone, d)
}

func (m *Machine) nationalID(d Draft, in Input) Result {
	text := strings.TrimSpace(in.Text)
	if in.Kind != InputText || !nationalIDPattern.MatchString(text) {
		return reject(StepNationalID, d, "invalidNationalId")
	}
	d.NationalID = text
	return m.advance(StepNationalID, d)
}

func (m *Machine) section(d Draft, in Input) Result {
	if in.Kind != InputButton || !strings.HasPrefix(in.Text, SectionPrefix) {
		return ignore(StepSection, d)
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(in.Text, SectionPrefix))
	if err != nil || idx < 0 || idx >= len(m.Sections) {
		return ignore(StepSection, d)
	}
	d.Section = m.Sections[idx].Tag
	return m.advance(StepSection, d)
}

func (m *Machine) summary(d Draft, in Input) Result {
	text, ok := longText(in, config.MinSummaryLength)
	if !ok {
		return reject(StepSummary, d, "invalidSummary")
	}
	d.Summary = text
	return m.advance(StepSummary, d)
}

func (m *Machine) media(d Draft, in Input) Result {
	switch in.Kind {
	case InputMedia:
		if in.Media.FileID == "" || (in.Media.Kind != models.MediaPhoto && in.Media.Kind != models.MediaVideo) {
			return reject(StepMedia, d, "invalidMedia")
		}
		d.Media = append(d.Media, in.Media)
		return Result{Next: StepMedia, Draft: d, Effect: EffectMediaAccepted}
	case InputButton:
		if in.Text == ButtonDone {
			return m.advance(StepMedia, d)
		}
	case InputText:
		if IsDoneLiteral(in.Text) {
			return m.advance(StepMedia, d)
		}
	}
	return reject(StepMedia, d, "invalidMedia")
}

func (m *Machine) confirm(d Draft, in Input) Result {
	if in.Kind != InputButton {
		return ignore(StepConfirm, d)
	}
	switch in.Text {
	case ButtonSubmit:
		return Result{Next: StepConfirm, Draft: d, Effect: EffectSubmit}
	case ButtonEdit:
		return Result{Next: m.First(), Draft: Draft{}, Effect: EffectPrompt}
	}
	return ignore(StepConfirm, d)
}

func (m *Machine) editSummary(d Draft, in Input) Result {
	text, ok := longText(in, config.MinSummaryLength)
	if !ok {
		return reject(StepEditSummary, d, "invalidSummary")
	}
	d.Summary = text
	return Result{Next: StepNone, Draft: d, Effect: EffectSummaryEdited}
}

// IsDoneLiteral reports whether text is one of the typed "Done" signals.
func IsDoneLiteral(text string) bool {
	text = strings.TrimSpace(text)
	for _, lit := range DoneLiterals {
		if text == lit {
			return true
		}
	}
	return false
}

// SectionButton is the callback payload for the section at idx.
func SectionButton(idx int) string {
	return SectionPrefix + strconv.Itoa(idx)
}

func longText(in Input, minRunes int) (string, bool) {
	if in.Kind != InputText {
		return "", false
	}
	text := strings.TrimSpace(in.Text)
	return text, utf8.RuneCountInString(text) >= minRunes
}

func reject(step Step, d Draft, key string) Result {
	return Result{Next: step, Draft: d, Effect: EffectReject, ErrorKey: key}
}

func ignore(step Step, d Draft) Result {
	return Result{Next: step, Draft: d, Effect: EffectIgnore}
}
