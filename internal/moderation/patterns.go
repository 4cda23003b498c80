package moderation

import (
	"regexp"
	"strings"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/pkg/textnorm"
)

// Pattern heuristics are a second opinion against the classifier, never the
// sole basis for an action. Evaluation order is fixed: blackmail, threat,
// harassment, spam, defamation; the first match wins.

var paymentRegex = regexp.MustCompile(`(?i)(cash\s?app|venmo|paypal|zelle|bitcoin|btc\b|crypto wallet|gift ?cards?|\$\d+|pay me|send (?:me )?money|wire me|transfer me)`)

var conditionalThreatRegex = regexp.MustCompile(`(?i)(or else|unless you|if you don'?t|i('| wi)ll (expose|leak|post|share|tell|ruin|report)|pay (?:up|me) or|delete this or|you have \d+ (hours?|days?))`)

var promoRegex = regexp.MustCompile(`(?i)(https?://\S+|bit\.ly/|linktr\.ee/|t\.me/|wa\.me/|check out my|follow (?:me|us)|dm (?:me|us) (?:for|to)|free followers|promo code|% ?off|giveaway|earn \$?\d+|work from home|click (?:the )?link)`)

var accusationRegex = regexp.MustCompile(`(?i)((?:is|was|are) a (?:scammer|fraud|liar|thief|con ?artist|criminal|predator)|scammed (?:me|us|everyone)|stole (?:my|our|from)|ripped (?:me|us) off|fake (?:business|company|products?)|don'?t trust (?:him|her|them|this))`)

// Harm-intent and insult dictionaries. Entries pass through the same
// normalization as comment text so repeated letters in the dictionary form
// ("kill" -> "kil") line up with the cleaned text they are matched against.
var harmWords = canonicalWords([]string{
	"kill", "murder", "shoot", "stab", "strangle", "slaughter",
	"hurt you", "harm you", "attack you", "destroy you", "beat you",
	"find you", "find where you live", "make you pay", "regret", "end you",
	"you are dead", "watch your back",
})

var insultWords = canonicalWords([]string{
	"ugly", "disgusting", "pathetic", "worthless", "loser", "idiot",
	"stupid", "trash", "garbage", "nobody likes you", "fat", "freak",
	"kys", "go die", "waste of space",
})

func canonicalWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = textnorm.Clean(w)
	}
	return out
}

// PatternDetector runs the regex heuristics. It is pure and safe for
// concurrent use; construct once and share.
type PatternDetector struct{}

func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

// Detect returns the first matching category in priority order, or false when
// no heuristic fires.
func (d *PatternDetector) Detect(text string) (models.Category, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	cleaned := textnorm.Clean(text)
	hasPayment := paymentRegex.MatchString(text)
	hasConditional := conditionalThreatRegex.MatchString(text)
	hasHarm, _ := textnorm.ContainsAnyWord(cleaned, harmWords)
	hasInsult, _ := textnorm.ContainsAnyWord(cleaned, insultWords)

	// Blackmail needs both a payment request and a conditional threat.
	if hasPayment && (hasConditional || hasHarm) {
		return models.CategoryBlackmail, true
	}

	// Harm-intent language without a payment request is a plain threat.
	if hasHarm && !hasPayment {
		return models.CategoryThreat, true
	}

	// Targeted insults, as long as they are not part of a payment demand.
	if hasInsult && !hasPayment {
		return models.CategoryHarassment, true
	}

	// Promotional/link patterns that are not threats or payment demands.
	if promoRegex.MatchString(text) && !hasHarm && !hasPayment {
		return models.CategorySpam, true
	}

	if accusationRegex.MatchString(text) {
		return models.CategoryDefamation, true
	}

	return "", false
}
