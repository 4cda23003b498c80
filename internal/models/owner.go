package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// OwnerRef identifies who owns a moderated account: a user directly, or a
// managed client under an agency. Exactly one side is set.
type OwnerRef struct {
	UserID   *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ClientID *primitive.ObjectID `bson:"client_id,omitempty" json:"client_id,omitempty"`
}

// IsClient reports whether the owner is a managed client.
func (o OwnerRef) IsClient() bool {
	return o.ClientID != nil
}

// Key returns a stable string key for cache and counter namespacing.
func (o OwnerRef) Key() string {
	if o.ClientID != nil {
		return "client:" + o.ClientID.Hex()
	}
	if o.UserID != nil {
		return "user:" + o.UserID.Hex()
	}
	return "unknown"
}
