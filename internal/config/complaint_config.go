package config

import "time"

const (
	// Wizard validation
	MinNameLength    = 4 // "more than 3 letters"
	MinAddressLength = 3
	MinSummaryLength = 5

	// Delivery
	MaxCaptionLength     = 1024
	BroadcastConcurrency = 8
	DeliveryTimeout      = 30 * time.Second

	// Submission
	MaxIDAttempts = 3

	// Scheduled jobs
	JobTimeout = 10 * time.Minute
)

// Sections is the fixed set of complaint categories shown as a button grid.
// Index positions are used as callback payloads, so only append to this list.
var Sections = []Section{
	{Label: "🛣 Yo‘l qurilishi", Tag: "Yo‘l qurilishi"},
	{Label: "🏫 Ta‘lim", Tag: "Ta‘lim"},
	{Label: "🆘 Amaliy yordam", Tag: "Amaliy yordam"},
	{Label: "🏥 Sog‘liqni saqlash", Tag: "Sog‘liqni saqlash"},
	{Label: "🏘 Uy-joy masalalari", Tag: "Uy-joy masalalari"},
	{Label: "💧 Ichimlik suvi", Tag: "Ichimlik suvi"},
	{Label: "🚰 Kanalizatsiya", Tag: "Kanalizatsiya"},
	{Label: "💡 Elektr ta’minoti", Tag: "Elektr ta’minoti"},
	{Label: "📶 Internet va aloqa", Tag: "Internet va aloqa"},
	{Label: "🚜 Qishloq xo‘jaligi", Tag: "Qishloq xo‘jaligi"},
	{Label: "🛍 Ijtimoiy yordam", Tag: "Ijtimoiy yordam"},
	{Label: "🧑‍💼 Ish bilan ta’minlash", Tag: "Ish bilan ta’minlash"},
	{Label: "🚓 Xavfsizlik masalalari", Tag: "Xavfsizlik masalalari"},
	{Label: "♿️ Nogironligi bo‘lganlar", Tag: "Nogironligi bo‘lganlar"},
	{Label: "🧾 Hujjatlar bilan bog‘liq muammolar", Tag: "Hujjatlar bilan bog‘liq muammolar"},
	{Label: "🙏 Minnatdorchilik", Tag: "Minnatdorchilik"},
	{Label: "📌 Boshqa soha", Tag: "Boshqa soha"},
}

// Section pairs the button label with the tag stored on the complaint.
type Section struct {
	Label string
	Tag   string
}
