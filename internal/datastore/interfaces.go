// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autolabelhq/autolabel-go/internal/conf"
	"github.com/autolabelhq/autolabel-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations available on projects and image records.
type Interface interface {
	Open() error
	Close() error
	// projects
	CreateProject(project *Project) error
	GetProject(id uint) (Project, error)
	GetAllProjects() ([]Project, error)
	// image records
	SaveImage(rec *ImageRecord) error
	GetImage(id uint) (ImageRecord, error)
	GetProjectImages(projectID uint) ([]ImageRecord, error)
	UpdateImageLabel(id uint, label string, verified bool) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// CreateProject validates and persists a new project. The label vocabulary is
// normalized before storage; empty name or empty vocabulary is a validation error.
func (ds *DataStore) CreateProject(project *Project) error {
	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		return errors.Newf("project name must not be empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	labels, err := NormalizeLabels(project.Labels)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(labels) == 0 {
		return errors.Newf("project must define at least one label").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	project.Labels = labels

	if err := ds.DB.Create(project).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("project_name", project.Name).
			Build()
	}
	return nil
}

// GetProject retrieves a project by its ID.
func (ds *DataStore) GetProject(id uint) (Project, error) {
	var project Project
	if err := ds.DB.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Project{}, errors.Newf("project %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Project{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("project_id", id).
			Build()
	}
	return project, nil
}

// GetAllProjects retrieves all projects ordered by creation time, most recent first.
func (ds *DataStore) GetAllProjects() ([]Project, error) {
	var projects []Project
	if err := ds.DB.Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return projects, nil
}

// SaveImage persists a new image record. The referenced project must exist.
func (ds *DataStore) SaveImage(rec *ImageRecord) error {
	// Creation is refused for dangling project references regardless of
	// whether the SQL backend enforces the foreign key.
	if _, err := ds.GetProject(rec.ProjectID); err != nil {
		return err
	}

	if err := ds.DB.Create(rec).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("project_id", rec.ProjectID).
			Context("storage_key", rec.StorageKey).
			Build()
	}
	return nil
}

// GetImage retrieves an image record by its ID.
func (ds *DataStore) GetImage(id uint) (ImageRecord, error) {
	var rec ImageRecord
	if err := ds.DB.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ImageRecord{}, errors.Newf("image %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return ImageRecord{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("image_id", id).
			Build()
	}
	return rec, nil
}

// GetProjectImages retrieves all image records for a project in a single query,
// most recent first.
func (ds *DataStore) GetProjectImages(projectID uint) ([]ImageRecord, error) {
	var records []ImageRecord
	err := ds.DB.Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("project_id", projectID).
			Build()
	}
	return records, nil
}

// UpdateImageLabel overwrites the label and verified flag of an image record.
// A nil confidence is set to 1.0 so a human-assigned label always carries one.
func (ds *DataStore) UpdateImageLabel(id uint, label string, verified bool) error {
	rec, err := ds.GetImage(id)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"label":       label,
		"is_verified": verified,
	}
	if rec.Confidence == nil {
		updates["confidence"] = 1.0
	}

	if err := ds.DB.Model(&ImageRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("image_id", id).
			Build()
	}
	return nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Project{}, &ImageRecord{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
