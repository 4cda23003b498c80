package models

// Category is the fixed set of moderation categories the classifier may
// return. Anything else is invalid and gets retried, then defaulted to benign.
type Category string

const (
	CategoryBlackmail  Category = "blackmail"
	CategoryThreat     Category = "threat"
	CategoryDefamation Category = "defamation"
	CategoryHarassment Category = "harassment"
	CategorySpam       Category = "spam"
	CategoryBenign     Category = "benign"
)

// Categories lists every valid category, in no particular order.
var Categories = []Category{
	CategoryBlackmail,
	CategoryThreat,
	CategoryDefamation,
	CategoryHarassment,
	CategorySpam,
	CategoryBenign,
}

// IsValid reports whether c is one of the fixed enumerated categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBlackmail, CategoryThreat, CategoryDefamation, CategoryHarassment, CategorySpam, CategoryBenign:
		return true
	}
	return false
}

// IdentifierKind types the identifiers the classifier extracts from comment
// text (payment handles, contact info, links).
type IdentifierKind string

const (
	IdentifierPaymentHandle IdentifierKind = "payment_handle"
	IdentifierContactInfo   IdentifierKind = "contact_info"
	IdentifierURL           IdentifierKind = "url"
	IdentifierOther         IdentifierKind = "other"
)

// ExtractedIdentifier is a typed key/value pair pulled out of a comment by
// the classifier (e.g. a CashApp tag inside a blackmail demand).
type ExtractedIdentifier struct {
	Kind  IdentifierKind `bson:"kind" json:"kind"`
	Value string         `bson:"value" json:"value"`
}

// Classification is the classifier's verdict on one comment. Severity is
// 0-100, confidence 0.0-1.0. Produced once per evaluation, revised at most
// once by re-evaluation.
type Classification struct {
	Category    Category              `bson:"category" json:"category"`
	Severity    int                   `bson:"severity" json:"severity"`
	Confidence  float64               `bson:"confidence" json:"confidence"`
	Rationale   string                `bson:"rationale" json:"rationale"`
	Identifiers []ExtractedIdentifier `bson:"identifiers,omitempty" json:"identifiers,omitempty"`
}

// URLAnalysis is the classifier's verdict on a single link found in a comment.
type URLAnalysis struct {
	IsSuspicious                bool   `json:"is_suspicious"`
	ContainsPaymentSolicitation bool   `json:"contains_payment_solicitation"`
	LinkType                    string `json:"link_type"`
	Rationale                   string `json:"rationale"`
}
