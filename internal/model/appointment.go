package model

import "time"

// Appointment is a vet visit or vaccination slot.
type Appointment struct {
	ID           uint     `gorm:"primaryKey"`
	Category     Category `gorm:"index"`
	ProviderName string
	LocationName string
	Address      string
	Date         string // 2006-01-02
	Time         string // 15:04
	Completed    bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Appointment) GetID() uint   { return a.ID }
func (a *Appointment) SetID(id uint) { a.ID = id }

// Instant resolves Date and Time in loc.
func (a Appointment) Instant(loc *time.Location) (time.Time, error) {
	return ParseInstant(a.Date, a.Time, loc)
}
