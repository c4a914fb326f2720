package reaction

import (
	"testing"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/feedback"
)

func TestMapReaction(t *testing.T) {
	cases := []struct {
		name    string
		channel channel.ID
		raw     string
		want    feedback.Rating
		mapped  bool
	}{
		{"unicode thumbs up", channel.Matrix, "👍", feedback.RatingPositive, true},
		{"thumbs up with tone", channel.Matrix, "👍🏽", feedback.RatingPositive, true},
		{"thumbs up variation selector", channel.Matrix, "👍️", feedback.RatingPositive, true},
		{"unicode thumbs down", channel.Matrix, "👎", feedback.RatingNegative, true},
		{"heart", channel.Matrix, "❤️", feedback.RatingPositive, true},
		{"shortcode", channel.Matrix, ":thumbsup:", feedback.RatingPositive, true},
		{"plus one alias", channel.Matrix, "+1", feedback.RatingPositive, true},
		{"minus one alias", channel.Matrix, "-1", feedback.RatingNegative, true},
		{"tradeapp like token", channel.TradeApp, "LIKE", feedback.RatingPositive, true},
		{"tradeapp dislike token", channel.TradeApp, "dislike", feedback.RatingNegative, true},
		{"web up token", channel.Web, "up", feedback.RatingPositive, true},
		{"unmapped pizza", channel.Matrix, "🍕", "", false},
		{"empty", channel.Matrix, "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MapReaction(tc.channel, tc.raw)
			if ok != tc.mapped {
				t.Fatalf("MapReaction(%s, %q) mapped = %v, want %v", tc.channel, tc.raw, ok, tc.mapped)
			}
			if ok && got != tc.want {
				t.Fatalf("MapReaction(%s, %q) = %s, want %s", tc.channel, tc.raw, got, tc.want)
			}
		})
	}
}

func TestChannelTokensDoNotLeakAcrossChannels(t *testing.T) {
	if _, ok := MapReaction(channel.Matrix, "like"); ok {
		t.Fatal("tradeapp token must not map on matrix")
	}
}
