package service

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
	"alcyxob/fitness-booking/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClassNotFound        = errors.New("class not found")
	ErrClassAccessDenied    = errors.New("access denied to modify or view this class")
	ErrValidationFailed     = errors.New("class validation failed")
	ErrCoverImageMissing    = errors.New("cover image was not uploaded")
	ErrUnsupportedImageType = errors.New("unsupported image content type")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ClassInput holds the editable fields of a class template.
type ClassInput struct {
	Name            string
	Description     string
	Day             string
	StartTime       string
	EndTime         string
	DurationMinutes int // derived from StartTime/EndTime when zero
	Capacity        int
	Price           float64
}

// ClassDetails is a template with presentation extras.
type ClassDetails struct {
	domain.ClassTemplate
	CoverImageURL string       `json:"coverImageUrl,omitempty"`
	Trainer       *domain.User `json:"trainer,omitempty"`
}

// CoverUpload is handed to the trainer's client for a direct S3 PUT.
type CoverUpload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// --- Service Interface ---
type ClassService interface {
	CreateClass(ctx context.Context, trainerID primitive.ObjectID, in ClassInput) (*domain.ClassTemplate, error)
	GetClass(ctx context.Context, classID primitive.ObjectID) (*ClassDetails, error)
	ListClasses(ctx context.Context) ([]domain.ClassTemplate, error)
	ListTrainerClasses(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ClassTemplate, error)
	UpdateClass(ctx context.Context, trainerID, classID primitive.ObjectID, in ClassInput) (*domain.ClassTemplate, error)
	// DeleteClass removes the template. Existing bookings are left as they are.
	DeleteClass(ctx context.Context, trainerID, classID primitive.ObjectID) error
	ListTrainers(ctx context.Context) ([]domain.User, error)

	RequestCoverUpload(ctx context.Context, trainerID, classID primitive.ObjectID, contentType string) (*CoverUpload, error)
	ConfirmCoverImage(ctx context.Context, trainerID, classID primitive.ObjectID, objectKey string) (*domain.ClassTemplate, error)
}

// --- Service Implementation ---

type classService struct {
	templateRepo repository.ClassTemplateRepository
	userRepo     repository.UserRepository
	fileStorage  storage.FileStorage
	validate     *validator.Validate
}

// NewClassService creates a new instance of classService.
func NewClassService(templateRepo repository.ClassTemplateRepository, userRepo repository.UserRepository, fileStorage storage.FileStorage) ClassService {
	return &classService{
		templateRepo: templateRepo,
		userRepo:     userRepo,
		fileStorage:  fileStorage,
		validate:     NewValidator(),
	}
}

// NewValidator returns a validator with the "weekday" rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseWeekday(fl.Field().String())
		return ok
	})
	return v
}

// CreateClass handles the creation of a new class template by a trainer.
func (s *classService) CreateClass(ctx context.Context, trainerID primitive.ObjectID, in ClassInput) (*domain.ClassTemplate, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID is required to create a class")
	}

	tpl := &domain.ClassTemplate{TrainerID: trainerID}
	if err := s.apply(tpl, in); err != nil {
		return nil, err
	}

	classID, err := s.templateRepo.Create(ctx, tpl)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Trainer %s created class %s (%s %s)", trainerID.Hex(), classID.Hex(), tpl.Day, tpl.StartTime)
	return s.templateRepo.GetByID(ctx, classID)
}

// apply copies in onto tpl and validates the result.
func (s *classService) apply(tpl *domain.ClassTemplate, in ClassInput) error {
	tpl.Name = strings.TrimSpace(in.Name)
	tpl.Description = in.Description
	tpl.Day = strings.TrimSpace(in.Day)
	tpl.StartTime = in.StartTime
	tpl.EndTime = in.EndTime
	tpl.DurationMinutes = in.DurationMinutes
	tpl.Capacity = in.Capacity
	tpl.Price = in.Price

	if tpl.DurationMinutes == 0 {
		tpl.DurationMinutes = minutesBetween(tpl.StartTime, tpl.EndTime)
	}
	if err := s.validate.Struct(tpl); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if tpl.EndTime <= tpl.StartTime {
		return fmt.Errorf("%w: endTime must be after startTime", ErrValidationFailed)
	}
	return nil
}

// minutesBetween returns the length of an HH:MM range, or 0 if unparsable.
func minutesBetween(start, end string) int {
	s, err1 := time.Parse(domain.ClockLayout, start)
	e, err2 := time.Parse(domain.ClockLayout, end)
	if err1 != nil || err2 != nil || !e.After(s) {
		return 0
	}
	return int(e.Sub(s).Minutes())
}

// GetClass returns the template with its trainer and a short-lived cover
// image URL. Missing extras do not fail the request.
func (s *classService) GetClass(ctx context.Context, classID primitive.ObjectID) (*ClassDetails, error) {
	tpl, err := s.templateRepo.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	details := &ClassDetails{ClassTemplate: *tpl}
	if trainer, err := s.userRepo.GetByID(ctx, tpl.TrainerID); err == nil {
		trainer.PasswordHash = ""
		details.Trainer = trainer
	}
	if tpl.CoverImageKey != "" {
		url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, tpl.CoverImageKey, storage.DefaultPresignedURLExpiry)
		if err != nil {
			log.Printf("WARN: Could not presign cover image for class %s: %v", classID.Hex(), err)
		} else {
			details.CoverImageURL = url
		}
	}
	return details, nil
}

func (s *classService) ListClasses(ctx context.Context) ([]domain.ClassTemplate, error) {
	return s.templateRepo.List(ctx)
}

func (s *classService) ListTrainerClasses(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ClassTemplate, error) {
	if trainerID == primitive.NilObjectID {
		return nil, errors.New("trainer ID cannot be nil")
	}
	return s.templateRepo.ListByTrainerID(ctx, trainerID)
}

// UpdateClass handles updating an existing class, ensuring ownership.
// Bookings already made keep the session details they were made with.
func (s *classService) UpdateClass(ctx context.Context, trainerID, classID primitive.ObjectID, in ClassInput) (*domain.ClassTemplate, error) {
	tpl, err := s.ownedClass(ctx, trainerID, classID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(tpl, in); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Update(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// DeleteClass handles deleting a class, ensuring ownership.
func (s *classService) DeleteClass(ctx context.Context, trainerID, classID primitive.ObjectID) error {
	tpl, err := s.ownedClass(ctx, trainerID, classID)
	if err != nil {
		return err
	}

	// The repository filter also carries trainerID.
	if err := s.templateRepo.Delete(ctx, classID, trainerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClassNotFound
		}
		return err
	}
	if tpl.CoverImageKey != "" {
		if err := s.fileStorage.DeleteObject(ctx, tpl.CoverImageKey); err != nil {
			log.Printf("WARN: Failed to delete cover image %s: %v", tpl.CoverImageKey, err)
		}
	}
	log.Printf("INFO: Trainer %s deleted class %s", trainerID.Hex(), classID.Hex())
	return nil
}

// ListTrainers is the public trainer directory.
func (s *classService) ListTrainers(ctx context.Context) ([]domain.User, error) {
	trainers, err := s.userRepo.ListByRole(ctx, domain.RoleTrainer)
	if err != nil {
		return nil, err
	}
	for i := range trainers {
		trainers[i].PasswordHash = ""
	}
	return trainers, nil
}

// RequestCoverUpload hands out a presigned PUT URL for a new cover image.
// The key is stored only once ConfirmCoverImage sees the object.
func (s *classService) RequestCoverUpload(ctx context.Context, trainerID, classID primitive.ObjectID, contentType string) (*CoverUpload, error) {
	if !allowedImageTypes[contentType] {
		return nil, ErrUnsupportedImageType
	}
	if _, err := s.ownedClass(ctx, trainerID, classID); err != nil {
		return nil, err
	}

	key := storage.CoverImageKey(classID.Hex(), contentType)
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	return &CoverUpload{UploadURL: url, ObjectKey: key}, nil
}

// ConfirmCoverImage points the class at an uploaded object and removes the
// previous cover.
func (s *classService) ConfirmCoverImage(ctx context.Context, trainerID, classID primitive.ObjectID, objectKey string) (*domain.ClassTemplate, error) {
	tpl, err := s.ownedClass(ctx, trainerID, classID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(objectKey, "classes/"+classID.Hex()+"/") {
		return nil, ErrCoverImageMissing
	}
	exists, err := s.fileStorage.ObjectExists(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCoverImageMissing
	}

	previous := tpl.CoverImageKey
	tpl.CoverImageKey = objectKey
	if err := s.templateRepo.Update(ctx, tpl); err != nil {
		return nil, err
	}
	if previous != "" && previous != objectKey {
		if err := s.fileStorage.DeleteObject(ctx, previous); err != nil {
			log.Printf("WARN: Failed to delete old cover image %s: %v", previous, err)
		}
	}
	return tpl, nil
}

func (s *classService) ownedClass(ctx context.Context, trainerID, classID primitive.ObjectID) (*domain.ClassTemplate, error) {
	if trainerID == primitive.NilObjectID || classID == primitive.NilObjectID {
		return nil, errors.New("trainer ID and class ID are required")
	}
	tpl, err := s.templateRepo.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if tpl.TrainerID != trainerID {
		return nil, ErrClassAccessDenied
	}
	return tpl, nil
}
