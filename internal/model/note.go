package model

import "time"

// Note is a timestamped free-text entry on a fault (`notes` table). Date is
// server time and is rewritten whenever the text is edited.
type Note struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"UserID"`
	Date    time.Time `json:"date"`
	FaultID int64     `json:"FaultID"`
	Notes   string    `json:"Notes"`
}
