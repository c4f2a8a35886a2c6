package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// SourceType identifies how a document entered the platform.
type SourceType string

const (
	SourceTypeUpload SourceType = "upload"
	SourceTypeScrape SourceType = "scrape"
)

var validSourceTypes = map[SourceType]bool{
	SourceTypeUpload: true,
	SourceTypeScrape: true,
}

// NewSourceType creates a new SourceType with validation.
func NewSourceType(sourceType string) (SourceType, error) {
	s := SourceType(sourceType)
	if !validSourceTypes[s] {
		return "", fmt.Errorf("invalid source type: %s", sourceType)
	}
	return s, nil
}

// String returns the string representation of the source type.
func (s SourceType) String() string {
	return string(s)
}

// SourceDescriptor describes where a job's raw bytes live and how they should
// be interpreted by the parser router.
type SourceDescriptor struct {
	mimeType   string
	sourceType SourceType
	storageKey string
}

// NewSourceDescriptor creates a validated SourceDescriptor.
func NewSourceDescriptor(mimeType string, sourceType SourceType, storageKey string) (SourceDescriptor, error) {
	if strings.TrimSpace(mimeType) == "" {
		return SourceDescriptor{}, errors.New("mime type cannot be empty")
	}
	if !validSourceTypes[sourceType] {
		return SourceDescriptor{}, fmt.Errorf("invalid source type: %s", sourceType)
	}
	if strings.TrimSpace(storageKey) == "" {
		return SourceDescriptor{}, errors.New("storage key cannot be empty")
	}
	return SourceDescriptor{
		mimeType:   mimeType,
		sourceType: sourceType,
		storageKey: storageKey,
	}, nil
}

// MimeType returns the declared mime type of the raw bytes.
func (d SourceDescriptor) MimeType() string {
	return d.mimeType
}

// SourceType returns how the document entered the platform.
func (d SourceDescriptor) SourceType() SourceType {
	return d.sourceType
}

// StorageKey returns the object storage key of the raw bytes.
func (d SourceDescriptor) StorageKey() string {
	return d.storageKey
}
