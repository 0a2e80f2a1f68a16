package model

import "time"

// Reminder is a one-shot nudge with a due time.
type Reminder struct {
	ID        uint `gorm:"primaryKey"`
	Title     string
	DueAt     string // 2006-01-02 15:04
	Completed bool   `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Reminder) GetID() uint   { return r.ID }
func (r *Reminder) SetID(id uint) { r.ID = id }

func (r Reminder) Instant(loc *time.Location) (time.Time, error) {
	return ParseDateTime(r.DueAt, loc)
}
