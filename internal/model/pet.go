package model

import "time"

// Pet stores the profile shown on the pets screen.
type Pet struct {
	ID                 uint `gorm:"primaryKey"`
	Name               string
	Age                string
	Species            string
	Weight             string
	Gender             string
	Breed              string
	Color              string
	ExerciseRoutine    string
	Diet               string
	MedicalHistory     string
	VaccinationHistory string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *Pet) GetID() uint   { return p.ID }
func (p *Pet) SetID(id uint) { p.ID = id }
