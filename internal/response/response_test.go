package response

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

func TestIsMilestoneMatchesFixedSet(t *testing.T) {
	for _, m := range []int{3, 7, 14, 30, 60, 90, 180, 365} {
		require.True(t, IsMilestone(m), "expected %d to be a milestone", m)
	}
	for _, n := range []int{1, 2, 4, 10, 31, 100} {
		require.False(t, IsMilestone(n), "expected %d not to be a milestone", n)
	}
}

func TestGenerateCheckinUsesPersonalityVoice(t *testing.T) {
	r := Generate(EventCheckin, model.PersonalityGentle, "", model.CelebrationModerate, Context{
		TrackerName: "Meditation", Greeting: "Good evening",
	})
	require.Equal(t, "voice-gentle", r.Voice)
	require.Contains(t, r.Text, "Meditation")
}

func TestGenerateVoiceOverrideWins(t *testing.T) {
	r := Generate(EventCheckin, model.PersonalityGentle, "custom-voice", model.CelebrationModerate, Context{TrackerName: "X", Greeting: "Hi"})
	require.Equal(t, "custom-voice", r.Voice)
}

func TestGenerateCelebrationQuietStripsExclamationsAndEmoji(t *testing.T) {
	r := Generate(EventCelebration, model.PersonalitySupportive, "", model.CelebrationQuiet, Context{
		TrackerName: "Running", Milestone: 7,
	})
	require.NotContains(t, r.Text, "!")
	require.NotContains(t, r.Text, "🎉")
}

func TestGenerateCelebrationEnthusiasticAppendsIntensityMarker(t *testing.T) {
	moderate := Generate(EventCelebration, model.PersonalitySupportive, "", model.CelebrationModerate, Context{TrackerName: "Running", Milestone: 7})
	enthusiastic := Generate(EventCelebration, model.PersonalitySupportive, "", model.CelebrationEnthusiastic, Context{TrackerName: "Running", Milestone: 7})
	require.True(t, strings.HasPrefix(enthusiastic.Text, moderate.Text))
	require.Greater(t, len(enthusiastic.Text), len(moderate.Text))
}

func TestGenerateCheckinWithStreakAppendsStreakCount(t *testing.T) {
	r := Generate(EventCheckinWithStreak, model.PersonalityDirect, "", model.CelebrationModerate, Context{
		TrackerName: "Exercise", Streak: 5, Greeting: "Morning",
	})
	require.Contains(t, r.Text, "5-day streak")
}

func TestGenerateStruggleMentionsConsecutiveMisses(t *testing.T) {
	r := Generate(EventStruggle, model.PersonalityToughLove, "", model.CelebrationModerate, Context{
		TrackerName: "Journaling", ConsecutiveMisses: 4,
	})
	require.Contains(t, r.Text, "4")
	require.Equal(t, "firm", r.Emotion)
}

func TestStripVoiceTagsRemovesBracketedAndAngleTags(t *testing.T) {
	in := "[cheerful] Great work today! <cheer> Keep going."
	out := StripVoiceTags(in)
	require.NotContains(t, out, "[")
	require.NotContains(t, out, "<")
	require.Equal(t, "Great work today! Keep going.", out)
}

func TestStripVoiceTagsOnAllPersonalitiesLeavesNoTags(t *testing.T) {
	for _, p := range []model.Personality{
		model.PersonalityGentle, model.PersonalitySupportive, model.PersonalityDirect,
		model.PersonalityAssertive, model.PersonalityToughLove,
	} {
		r := Generate(EventCelebration, p, "", model.CelebrationModerate, Context{TrackerName: "X", Milestone: 30})
		stripped := StripVoiceTags(r.Text)
		require.NotContains(t, stripped, "[")
		require.NotContains(t, stripped, "<")
	}
}
