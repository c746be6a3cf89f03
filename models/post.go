package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	AuthorID  primitive.ObjectID   `bson:"author_id" json:"author"`
	Heading   string               `bson:"heading" json:"heading"`
	Content   string               `bson:"content" json:"content"`
	Tags      []string             `bson:"tags" json:"tags"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updatedAt"`

	// Enriched fields
	AuthorDetails *UserSummary `bson:"-" json:"authorDetails,omitempty"`
	LikesCount    int          `bson:"-" json:"likesCount"`
}

// LikedBy reports whether uid is in the post's likes.
func (p *Post) LikedBy(uid primitive.ObjectID) bool {
	for _, id := range p.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

func (p *Post) Enrich() {
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.LikesCount = len(p.Likes)
}
