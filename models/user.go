package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name            string             `bson:"name" json:"name"`
	Email           string             `bson:"email" json:"email"`
	PasswordHash    string             `bson:"password_hash" json:"-"`
	MobileNumber    string             `bson:"mobile_number,omitempty" json:"mobileNumber,omitempty"`
	ProfilePhoto    string             `bson:"profile_photo,omitempty" json:"profilePhoto,omitempty"`
	IsPerformer     bool               `bson:"is_performer" json:"isPerformer"`
	IsAdmin         bool               `bson:"is_admin" json:"isAdmin"`
	ProfileTags     []string           `bson:"profile_tags" json:"profileTags"`
	OneLineDesc     string             `bson:"one_line_desc,omitempty" json:"oneLineDesc,omitempty"`
	WorkDescription string             `bson:"work_description,omitempty" json:"workDescription,omitempty"`
	SamplePoetry    string             `bson:"sample_poetry,omitempty" json:"samplePoetry,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the public slice of a user shown next to events and posts.
type UserSummary struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	ProfilePhoto string             `json:"profilePhoto,omitempty"`
	OneLineDesc  string             `json:"oneLineDesc,omitempty"`
	ProfileTags  []string           `json:"profileTags,omitempty"`
	IsPerformer  bool               `json:"isPerformer"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		ProfilePhoto: u.ProfilePhoto,
		OneLineDesc:  u.OneLineDesc,
		ProfileTags:  u.ProfileTags,
		IsPerformer:  u.IsPerformer,
	}
}

// Public strips contact details for profiles viewed by other users.
func (u User) Public() User {
	u.Email = ""
	u.MobileNumber = ""
	return u
}
