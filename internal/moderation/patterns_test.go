package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

func TestPatternDetector(t *testing.T) {
	d := NewPatternDetector()

	tests := []struct {
		name string
		text string
		want models.Category
		hit  bool
	}{
		{
			name: "blackmail payment plus conditional",
			text: "send me $500 on venmo or else I will expose everything",
			want: models.CategoryBlackmail,
			hit:  true,
		},
		{
			name: "blackmail payment plus harm",
			text: "pay me on cashapp or I will hurt you",
			want: models.CategoryBlackmail,
			hit:  true,
		},
		{
			name: "obfuscated threat",
			text: "i will k!ll you",
			want: models.CategoryThreat,
			hit:  true,
		},
		{
			name: "plain threat no payment",
			text: "watch your back, I know where you live",
			want: models.CategoryThreat,
			hit:  true,
		},
		{
			name: "harassment insults",
			text: "you are a pathetic worthless loser",
			want: models.CategoryHarassment,
			hit:  true,
		},
		{
			name: "spam promo link",
			text: "check out my page https://example.com free followers",
			want: models.CategorySpam,
			hit:  true,
		},
		{
			name: "defamation accusation",
			text: "this guy is a scammer, he stole my money",
			want: models.CategoryDefamation,
			hit:  true,
		},
		{
			name: "benign compliment",
			text: "love this post, great content!",
			hit:  false,
		},
		{
			name: "skill does not trip kill",
			text: "that takes real skill",
			hit:  false,
		},
		{
			name: "empty text",
			text: "   ",
			hit:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := d.Detect(tt.text)
			assert.Equal(t, tt.hit, hit)
			if tt.hit {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPatternDetectorPriority(t *testing.T) {
	d := NewPatternDetector()

	// Payment plus harm language is blackmail, not threat.
	cat, hit := d.Detect("wire me $200 right now or I will end you")
	assert.True(t, hit)
	assert.Equal(t, models.CategoryBlackmail, cat)

	// Harm language wins over an insult in the same comment.
	cat, hit = d.Detect("you pathetic loser, I will kill you")
	assert.True(t, hit)
	assert.Equal(t, models.CategoryThreat, cat)

	// A link inside a threat does not downgrade it to spam.
	cat, hit = d.Detect("I will hurt you, see https://example.com")
	assert.True(t, hit)
	assert.Equal(t, models.CategoryThreat, cat)
}
