// Package models holds the API entities exchanged between the HTTP layer,
// the validation pipeline, and the storage backends.
//
// UserInfo and Audio carry the fields a client supplies plus the fields the
// server assigns on persistence (the user id, the hosted image link). The
// request payload accepted to create them is therefore a subset of the full
// model.
package models

// UserInfo is a persisted account record. ID is assigned by the database on
// insert and ImageHostedLink stays null until an image is uploaded for the
// account.
type UserInfo struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Address         string  `json:"address"`
	ImageHostedLink *string `json:"image_hosted_link"`
}

// Audio is one stored audio session record. SessionID is supplied by the
// client and acts as the natural key of the record.
type Audio struct {
	SessionID    int64     `json:"session_id"`
	Ticks        []float64 `json:"ticks"`
	SelectedTick int       `json:"selected_tick"`
	StepCount    int       `json:"step_count"`
}
