package model

import "time"

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Trust       int       `json:"trust"`
	FirstSeen   time.Time `json:"first_seen"`
}
