package domain

import "time"

// Feedback is a free-text submission from a visitor. Two payload shapes are
// accepted on the wire: name/phone/feedback and the older id/feedback form.
type Feedback struct {
	ID        string    `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	ClientID  string    `bson:"client_id,omitempty" json:"clientId,omitempty"`
	Message   string    `bson:"feedback" json:"feedback"`
	Timestamp string    `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
