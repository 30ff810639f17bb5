// Package response implements the personality-driven ResponseGenerator
// (spec §4.6): a pure function mapping (event kind, personality, voice
// override, celebration style, context) to rendered text plus voice
// parameters; it takes no locale and renders English text only. It is ported from
// original_source/src/bot/handlers/accountability_commands.py's voice
// catalogue and original_source/src/services/accountability_scheduler.py's
// _strip_voice_tags helper.
package response

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// EventKind enumerates the events C6 can render (spec §4.6).
type EventKind string

const (
	EventCheckin             EventKind = "checkin"
	EventCheckinWithStreak   EventKind = "checkin_with_streak"
	EventCelebration         EventKind = "celebration"
	EventStruggle            EventKind = "struggle"
)

// Milestones is the fixed streak-length set that triggers a celebration
// (spec §4.6/§8).
var Milestones = map[int]bool{3: true, 7: true, 14: true, 30: true, 60: true, 90: true, 180: true, 365: true}

// IsMilestone reports whether streak is one of the fixed celebration
// lengths.
func IsMilestone(streak int) bool { return Milestones[streak] }

// Context carries the rendering inputs derived from the domain model
// for a single response (spec §4.6).
type Context struct {
	TrackerName        string
	Streak             int
	Milestone          int
	ConsecutiveMisses  int
	Greeting           string // time-of-day greeting, e.g. "Good evening"
}

// Rendered is the output of Generate: a template-rendered string
// (which may carry inline voice markers) plus the voice identifier and
// emotion label to use if synthesized.
type Rendered struct {
	Text    string
	Voice   string
	Emotion string
}

var voiceByPersonality = map[model.Personality]string{
	model.PersonalityGentle:     "voice-gentle",
	model.PersonalitySupportive: "voice-supportive",
	model.PersonalityDirect:     "voice-direct",
	model.PersonalityAssertive:  "voice-assertive",
	model.PersonalityToughLove:  "voice-tough-love",
}

// Generate renders one event. personality/voiceOverride select the
// voice catalogue entry; celebrationStyle only affects
// EventCelebration output.
func Generate(kind EventKind, personality model.Personality, voiceOverride string, style model.CelebrationStyle, ctx Context) Rendered {
	voice := voiceByPersonality[personality]
	if voice == "" {
		voice = voiceByPersonality[model.PersonalitySupportive]
	}
	if voiceOverride != "" {
		voice = voiceOverride
	}

	var text, emotion string
	switch kind {
	case EventCheckin:
		text, emotion = renderCheckin(personality, ctx)
	case EventCheckinWithStreak:
		text, emotion = renderCheckinWithStreak(personality, ctx)
	case EventCelebration:
		text, emotion = renderCelebration(personality, ctx)
		text = applyCelebrationStyle(text, style)
	case EventStruggle:
		text, emotion = renderStruggle(personality, ctx)
	default:
		text, emotion = fmt.Sprintf("%s: %s", ctx.Greeting, ctx.TrackerName), "neutral"
	}

	return Rendered{Text: text, Voice: voice, Emotion: emotion}
}

func renderCheckin(p model.Personality, ctx Context) (string, string) {
	switch p {
	case model.PersonalityGentle:
		return fmt.Sprintf("[warm] %s. Time for %s whenever you're ready. <soft>", ctx.Greeting, ctx.TrackerName), "warm"
	case model.PersonalityDirect, model.PersonalityAssertive:
		return fmt.Sprintf("%s — %s is due. Mark it done or skip.", ctx.Greeting, ctx.TrackerName), "neutral"
	case model.PersonalityToughLove:
		return fmt.Sprintf("[stern] %s. %s isn't going to do itself.", ctx.Greeting, ctx.TrackerName), "stern"
	default: // supportive
		return fmt.Sprintf("[encouraging] %s! How about %s today? <nod>", ctx.Greeting, ctx.TrackerName), "encouraging"
	}
}

func renderCheckinWithStreak(p model.Personality, ctx Context) (string, string) {
	base, emotion := renderCheckin(p, ctx)
	return fmt.Sprintf("%s You're on a %d-day streak.", base, ctx.Streak), emotion
}

func renderCelebration(p model.Personality, ctx Context) (string, string) {
	switch p {
	case model.PersonalityGentle:
		return fmt.Sprintf("[cheerful] %d days of %s. That's wonderful. <smile>", ctx.Milestone, ctx.TrackerName), "cheerful"
	case model.PersonalityDirect, model.PersonalityAssertive:
		return fmt.Sprintf("%d-day streak on %s. Solid work.", ctx.Milestone, ctx.TrackerName), "neutral"
	case model.PersonalityToughLove:
		return fmt.Sprintf("[proud] %d days straight on %s. Don't get comfortable. <chuckle>", ctx.Milestone, ctx.TrackerName), "proud"
	default:
		return fmt.Sprintf("[cheerful] %d days of %s?! Incredible! <cheer>", ctx.Milestone, ctx.TrackerName), "cheerful"
	}
}

func renderStruggle(p model.Personality, ctx Context) (string, string) {
	switch p {
	case model.PersonalityGentle:
		return fmt.Sprintf("[soft] It's been %d days since %s. No judgment — want to talk about it? <pause>", ctx.ConsecutiveMisses, ctx.TrackerName), "soft"
	case model.PersonalityToughLove:
		return fmt.Sprintf("[firm] %d days missed on %s. What's actually going on?", ctx.ConsecutiveMisses, ctx.TrackerName), "firm"
	case model.PersonalityDirect, model.PersonalityAssertive:
		return fmt.Sprintf("%s is %d days behind. What's blocking you?", ctx.TrackerName, ctx.ConsecutiveMisses), "neutral"
	default:
		return fmt.Sprintf("[concerned] Noticed %s has slipped for %d days. I'm here if you want to reset. <sigh>", ctx.TrackerName, ctx.ConsecutiveMisses), "concerned"
	}
}

var (
	exclamationPattern = regexp.MustCompile(`!+`)
	intensityMarker     = " 🎉"
)

// applyCelebrationStyle adjusts enthusiasm per spec §4.6: quiet strips
// emoji-ish tags and exclamation marks, enthusiastic appends an extra
// intensity marker, moderate leaves the template untouched.
func applyCelebrationStyle(text string, style model.CelebrationStyle) string {
	switch style {
	case model.CelebrationQuiet:
		text = exclamationPattern.ReplaceAllString(text, ".")
		text = stripEmoji(text)
		return text
	case model.CelebrationEnthusiastic:
		return text + intensityMarker
	default:
		return text
	}
}

var bracketTag = regexp.MustCompile(`\[.*?\]`)
var angleTag = regexp.MustCompile(`<\w+>`)

// StripVoiceTags removes inline voice markers for a text-only channel
// (spec §4.6: "a post-processor strips all bracketed and angle-bracketed
// voice tags"), grounded on _strip_voice_tags in
// original_source/src/services/accountability_scheduler.py.
func StripVoiceTags(text string) string {
	text = bracketTag.ReplaceAllString(text, "")
	text = angleTag.ReplaceAllString(text, "")
	return strings.TrimSpace(collapseSpaces(text))
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// stripEmoji removes a small fixed set of celebratory emoji (including
// the enthusiastic intensity marker's); it is not a general Unicode
// emoji stripper.
func stripEmoji(s string) string {
	replacer := strings.NewReplacer("🎉", "", "🎊", "", "✨", "")
	return replacer.Replace(s)
}
