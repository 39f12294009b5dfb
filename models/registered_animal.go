package models

import "time"

const (
	AnimalStatusCaught  = "caught"
	AnimalStatusFree    = "free"
	AnimalStatusClaimed = "claimed"
)

// RegisteredAnimal is an owned pet entered into the barangay registry.
type RegisteredAnimal struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	Owner      string        `json:"owner" gorm:"not null"`
	Contact    string        `json:"contact" gorm:"not null"`
	AnimalType string        `json:"animal_type" gorm:"not null"` // dog or cat
	PetName    *string       `json:"pet_name,omitempty"`
	Breed      *string       `json:"breed,omitempty"`
	Picture    *string       `json:"picture,omitempty"`
	Status     string        `json:"status" gorm:"not null;default:free"`
	Images     []AnimalImage `json:"images" gorm:"foreignKey:RegisteredAnimalID"`
	CreatedAt  time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type AnimalImage struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	RegisteredAnimalID uint      `json:"registered_animal_id" gorm:"not null;index"`
	FileName           string    `json:"file_name" gorm:"not null"`
	FilePath           string    `json:"file_path" gorm:"not null"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
