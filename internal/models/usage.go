package models

import "time"

// UsageLog is one meter reading for an account.
type UsageLog struct {
	ID        string
	AccountID string
	Date      time.Time
	Value     float64
	Unit      string // MJ for gas, kL for water
}
