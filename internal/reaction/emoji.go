package reaction

import (
	"strings"

	"github.com/kenshaw/emoji"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/feedback"
)

// Alias sets shared by all channels. Raw reactions are normalized to gemoji
// aliases first, so one table covers unicode, shortcode and alias forms.
var (
	positiveAliases = map[string]bool{
		"+1": true, "thumbsup": true, "heart": true, "hearts": true,
		"tada": true, "clap": true, "ok_hand": true, "100": true,
		"white_check_mark": true, "heavy_check_mark": true, "star": true,
		"pray": true, "raised_hands": true, "smile": true, "grinning": true,
		"slightly_smiling_face": true,
	}
	negativeAliases = map[string]bool{
		"-1": true, "thumbsdown": true, "x": true, "confused": true,
		"disappointed": true, "angry": true, "rage": true, "cry": true,
		"sob": true, "frowning": true, "slightly_frowning_face": true,
	}
)

// Channel-native reaction tokens that are not emojis at all.
var channelTokens = map[channel.ID]map[string]feedback.Rating{
	channel.TradeApp: {
		"like":    feedback.RatingPositive,
		"dislike": feedback.RatingNegative,
	},
	channel.Web: {
		"up":   feedback.RatingPositive,
		"down": feedback.RatingNegative,
	},
}

// MapReaction resolves a channel-native raw reaction to a rating. Returns
// false for reactions that carry no sentiment we track.
func MapReaction(channelID channel.ID, raw string) (feedback.Rating, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if tokens, ok := channelTokens[channelID]; ok {
		if rating, ok := tokens[strings.ToLower(raw)]; ok {
			return rating, true
		}
	}
	for _, alias := range reactionAliases(raw) {
		if positiveAliases[alias] {
			return feedback.RatingPositive, true
		}
		if negativeAliases[alias] {
			return feedback.RatingNegative, true
		}
	}
	return "", false
}

// reactionAliases normalizes a raw reaction to its gemoji aliases. Handles
// unicode emoji (with variation selectors and skin tones) and :shortcode:
// or bare alias forms.
func reactionAliases(raw string) []string {
	if e := emoji.FromCode(stripModifiers(raw)); e != nil {
		return e.Aliases
	}
	alias := strings.ToLower(strings.Trim(raw, ":"))
	if e := emoji.FromAlias(alias); e != nil {
		return e.Aliases
	}
	// Unknown to the emoji table; still match our alias sets directly so
	// plain "+1"/"-1" style tokens work.
	return []string{alias}
}

// stripModifiers removes variation selectors, skin tone modifiers and ZWJ
// so tone variants of thumbs-up map like the base emoji.
func stripModifiers(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == 0xFE0E || r == 0xFE0F: // variation selectors
		case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		case r == 0x200D: // zero-width joiner
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
