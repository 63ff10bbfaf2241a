// Package wizard implements the complaint intake conversation as a pure,
// table-driven state machine. It never talks to the transport or the store;
// callers apply the returned Effect.
package wizard

import "qabulxona/backend/internal/models"

// Step is the current position of a conversation.
type Step int

const (
	StepNone Step = iota
	StepName
	StepAddress
	StepPhone
	StepNationalID
	StepSection
	StepSummary
	StepMedia
	StepConfirm
	StepEditSummary
)

var stepNames = map[Step]string{
	StepNone:        "none",
	StepName:        "name",
	StepAddress:     "address",
	StepPhone:       "phone",
	StepNationalID:  "national_id",
	StepSection:     "section",
	StepSummary:     "summary",
	StepMedia:       "media",
	StepConfirm:     "confirm",
	StepEditSummary: "edit_summary",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// PromptKey is the localization key asking for the input of a step.
func (s Step) PromptKey() string {
	switch s {
	case StepName:
		return "askName"
	case StepAddress:
		return "askAddress"
	case StepPhone:
		return "askPhone"
	case StepNationalID:
		return "askNationalId"
	case StepSection:
		return "askSection"
	case StepSummary:
		return "askSummary"
	case StepMedia:
		return "askMedia"
	case StepConfirm:
		return "confirm"
	case StepEditSummary:
		return "editComplaint"
	}
	return ""
}

// InputKind classifies an inbound event for the machine.
type InputKind int

const (
	InputText InputKind = iota
	InputContact
	InputMedia
	InputButton
)

// Input is a single inbound event already stripped of transport details.
type Input struct {
	Kind InputKind
	// Text carries the message text, the shared contact phone or the button data.
	Text   string
	Handle string
	Media  models.MediaItem
}

// Button payloads understood by the machine.
const (
	ButtonBack   = "w:back"
	ButtonCancel = "w:cancel"
	ButtonDone   = "w:done"
	ButtonSubmit = "w:submit"
	ButtonEdit   = "w:edit"

	SectionPrefix = "sec:"
)

// DoneLiterals end media collection when typed instead of pressed.
var DoneLiterals = []string{"✅ Tayyor", "Tayyor", "Готово", "Done"}

// Draft holds the fields collected so far.
type Draft struct {
	FullName   string
	Handle     string
	Address    string
	Phone      string
	NationalID string
	Section    string
	Summary    string
	Media      []models.MediaItem
}

// Clone returns a copy that shares no slice storage with d.
func (d Draft) Clone() Draft {
	if d.Media != nil {
		media := make([]models.MediaItem, len(d.Media))
		copy(media, d.Media)
		d.Media = media
	}
	return d
}

// Effect tells the caller what to do after a transition.
type Effect int

const (
	// EffectPrompt asks for the input of Result.Next.
	EffectPrompt Effect = iota
	// EffectReject re-prompts the current step with Result.ErrorKey.
	EffectReject
	// EffectMediaAccepted acknowledges an attachment; the step is unchanged.
	EffectMediaAccepted
	// EffectIgnore means the input had no meaning at this step.
	EffectIgnore
	// EffectSubmit finalizes the draft.
	EffectSubmit
	// EffectSummaryEdited replaces the summary of an existing complaint.
	EffectSummaryEdited
	// EffectCancel destroys the session.
	EffectCancel
)

var effectNames = map[Effect]string{
	EffectPrompt:        "prompt",
	EffectReject:        "reject",
	EffectMediaAccepted: "media_accepted",
	EffectIgnore:        "ignore",
	EffectSubmit:        "submit",
	EffectSummaryEdited: "summary_edited",
	EffectCancel:        "cancel",
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return "unknown"
}

// Result is the outcome of one transition.
type Result struct {
	Next     Step
	Draft    Draft
	Effect   Effect
	ErrorKey string
}
