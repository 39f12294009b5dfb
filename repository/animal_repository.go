package repository

import (
	"time"

	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormAnimalRepository struct {
	db *gorm.DB
}

func NewGormAnimalRepository(db *gorm.DB) AnimalRepository {
	return &GormAnimalRepository{db: db}
}

func (r *GormAnimalRepository) Create(animal *models.RegisteredAnimal) error {
	return r.db.Create(animal).Error
}

func (r *GormAnimalRepository) GetByID(id uint) (*models.RegisteredAnimal, error) {
	var animal models.RegisteredAnimal
	if err := r.db.Preload("Images").First(&animal, id).Error; err != nil {
		return nil, err
	}
	return &animal, nil
}

func (r *GormAnimalRepository) ListAll() ([]models.RegisteredAnimal, error) {
	var animals []models.RegisteredAnimal
	err := r.db.Preload("Images").Order("created_at DESC").Find(&animals).Error
	return animals, err
}

func (r *GormAnimalRepository) Update(animal *models.RegisteredAnimal) error {
	return r.db.Omit("Images").Save(animal).Error
}

func (r *GormAnimalRepository) AddImages(animalID uint, images []models.AnimalImage) error {
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].RegisteredAnimalID = animalID
	}
	return r.db.Create(&images).Error
}

func (r *GormAnimalRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("registered_animal_id = ?", id).Delete(&models.AnimalImage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.RegisteredAnimal{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormAnimalRepository) CountCreatedSince(since time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&models.RegisteredAnimal{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}
