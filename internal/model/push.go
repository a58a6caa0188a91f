package model

import "time"

const NotifTypeActivityReminder = "activity_reminder"

// PushSubscription is one browser registered for web push. The key material
// is never rendered.
type PushSubscription struct {
	ID         int64     `json:"id"`
	MemberID   string    `json:"userId"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"deviceName"`
	CreatedAt  time.Time `json:"createdAt"`
}
