package models

import "time"

// Follow is a directed edge: FollowerID follows FollowedID.
// The pair is the primary key, so an edge exists at most once.
type Follow struct {
	FollowedID uint      `gorm:"primaryKey;autoIncrement:false;column:user_being_followed_id" json:"followed_id"`
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false;column:user_following_id;index:idx_follows_follower" json:"follower_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relationships
	Followed *User `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE" json:"-"`
	Follower *User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
