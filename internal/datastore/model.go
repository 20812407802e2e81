// model.go this code defines the data model for the application
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LabelList is an ordered label vocabulary stored as a JSON-encoded TEXT column.
// Order defines prompt order for the classifier and tie-break priority.
type LabelList []string

// Value implements driver.Valuer, serializing the list to JSON.
func (l LabelList) Value() (driver.Value, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling label list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the JSON column value.
func (l *LabelList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported label list column type %T", value)
	}
	return json.Unmarshal(data, l)
}

// Contains reports whether the vocabulary includes the given label.
func (l LabelList) Contains(label string) bool {
	for _, candidate := range l {
		if candidate == label {
			return true
		}
	}
	return false
}

// NormalizeLabels trims whitespace from each label and drops empty entries.
// Returns an error if a duplicate remains after normalization.
func NormalizeLabels(labels []string) (LabelList, error) {
	normalized := make(LabelList, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		seen[label] = struct{}{}
		normalized = append(normalized, label)
	}
	return normalized, nil
}

// Project represents a labeling project with its label vocabulary.
// Projects are immutable after creation.
type Project struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Labels    LabelList `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_projects_created_at"`

	Images []ImageRecord `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// ImageRecord represents one ingested image with its suggested label.
// Label and Confidence are nil when classification failed; Confidence is
// non-nil exactly when Label is.
type ImageRecord struct {
	ID         uint   `gorm:"primaryKey"`
	ProjectID  uint   `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:ProjectID;references:ID"` // Foreign key to associate with Project
	Filename   string `gorm:"not null"`
	StorageKey string `gorm:"uniqueIndex;not null"`
	Label      *string
	Confidence *float64
	IsVerified bool      `gorm:"default:false"`
	CreatedAt  time.Time `gorm:"index:idx_images_created_at"`
}

// Copy creates a deep copy of the ImageRecord struct
func (r ImageRecord) Copy() ImageRecord {
	newCopy := r
	if r.Label != nil {
		label := *r.Label
		newCopy.Label = &label
	}
	if r.Confidence != nil {
		confidence := *r.Confidence
		newCopy.Confidence = &confidence
	}
	return newCopy
}
