package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberRole is a member's role within a chama
type MemberRole string

const (
	MemberRoleMember    MemberRole = "member"
	MemberRoleTreasurer MemberRole = "treasurer"
	MemberRoleAdmin     MemberRole = "admin"
)

// Membership links a user to a chama with a role
type Membership struct {
	UserID   primitive.ObjectID `json:"userId" bson:"userId"`
	Role     MemberRole         `json:"role" bson:"role"`
	JoinedAt time.Time          `json:"joinedAt" bson:"joinedAt"`
}

// Chama is a member-owned savings group. Chama administration (creation,
// member management, meetings) lives outside this service; the ledger reads
// chamas for membership checks and notification fan-out.
type Chama struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Members   []Membership       `json:"members" bson:"members"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// HasMember reports whether userID belongs to the chama
func (c *Chama) HasMember(userID primitive.ObjectID) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of every chama member
func (c *Chama) MemberIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.UserID
	}
	return ids
}

type ChamaRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*Chama, error)
}
