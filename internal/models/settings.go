package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsScope identifies which layer of the resolution chain a stored
// settings document belongs to. Most specific wins: account, then managed
// client, then the owner's global default.
type SettingsScope string

const (
	SettingsScopeAccount SettingsScope = "account"
	SettingsScopeClient  SettingsScope = "client"
	SettingsScopeOwner   SettingsScope = "owner"
)

// CategoryRuleSettings is the stored per-category configuration. All fields
// are optional; the resolver fills gaps from the next layer down and finally
// from hardcoded defaults, so the decision cascade never sees a nil.
type CategoryRuleSettings struct {
	AutoDeleteEnabled   *bool `bson:"auto_delete_enabled,omitempty" json:"auto_delete_enabled,omitempty"`
	AutoDeleteThreshold *int  `bson:"auto_delete_threshold,omitempty" json:"auto_delete_threshold,omitempty"`
	FlagDeleteEnabled   *bool `bson:"flag_delete_enabled,omitempty" json:"flag_delete_enabled,omitempty"`
	FlagDeleteThreshold *int  `bson:"flag_delete_threshold,omitempty" json:"flag_delete_threshold,omitempty"`
	FlagHideEnabled     *bool `bson:"flag_hide_enabled,omitempty" json:"flag_hide_enabled,omitempty"`
	FlagHideThreshold   *int  `bson:"flag_hide_threshold,omitempty" json:"flag_hide_threshold,omitempty"`
}

// ModerationSettings is one stored settings document at one scope.
type ModerationSettings struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Scope         SettingsScope       `bson:"scope" json:"scope"`
	AccountID     string              `bson:"account_id,omitempty" json:"account_id,omitempty"`
	OwnerUserID   *primitive.ObjectID `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	OwnerClientID *primitive.ObjectID `bson:"owner_client_id,omitempty" json:"owner_client_id,omitempty"`

	ConfidenceDeleteThreshold *float64 `bson:"confidence_delete_threshold,omitempty" json:"confidence_delete_threshold,omitempty"`
	ConfidenceHideThreshold   *float64 `bson:"confidence_hide_threshold,omitempty" json:"confidence_hide_threshold,omitempty"`

	SimilarityEnabled   *bool    `bson:"similarity_enabled,omitempty" json:"similarity_enabled,omitempty"`
	SimilarityThreshold *float64 `bson:"similarity_threshold,omitempty" json:"similarity_threshold,omitempty"`

	Categories map[string]CategoryRuleSettings `bson:"categories,omitempty" json:"categories,omitempty"`
}
