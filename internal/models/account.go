package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ManagedAccount is a social media account enrolled for moderation. The
// webhook resolves incoming comment events to one of these to learn the
// owner and the platform credential to act with.
type ManagedAccount struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	// Internal account id used across collections.
	AccountID string `bson:"account_id" json:"account_id"`
	// The platform's id for the account; webhook events carry this.
	PlatformID string `bson:"platform_id" json:"platform_id"`
	Username   string `bson:"username" json:"username"`

	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	// Platform access token for hide/delete/block calls.
	AccessToken string `bson:"access_token" json:"-"`

	Active bool `bson:"active" json:"active"`
}

// Owner returns the account's owner reference.
func (a *ManagedAccount) Owner() OwnerRef {
	return OwnerRef{UserID: a.OwnerUserID, ClientID: a.OwnerClientID}
}
