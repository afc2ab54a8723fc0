package models

import "time"

// Profile is the per-user document written at sign-up. The same struct is
// stored in Mongo (bson tags) or in the relational database (gorm tags).
type Profile struct {
	UID       string    `gorm:"primaryKey;type:varchar(64)" json:"uid" bson:"uid"`
	Username  string    `gorm:"type:varchar(100)" json:"username" bson:"username"`
	Email     string    `gorm:"index" json:"email" bson:"email"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
