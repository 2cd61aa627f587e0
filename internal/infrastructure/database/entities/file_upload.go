package entities

import (
	"time"

	"assistant-api/internal/domain/attachment"
)

// FileUpload tracks one provider file upload.
type FileUpload struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Filename        string `gorm:"type:varchar(512);not null"`
	FileID          string `gorm:"type:varchar(64);uniqueIndex;not null"`
	VectorStoreID   string `gorm:"type:varchar(64);index"`
	VectorStoreName string `gorm:"type:varchar(256)"`
	ThreadID        uint   `gorm:"index;not null"`
	UserID          string `gorm:"type:varchar(64);index;not null"`
	Size            int64  `gorm:"not null;default:0"`
}

// TableName specifies the table name for FileUpload.
func (FileUpload) TableName() string {
	return "file_uploads"
}

// EtoD converts database entity to domain model.
func (f *FileUpload) EtoD() attachment.UploadRecord {
	return attachment.UploadRecord{
		Filename:        f.Filename,
		FileID:          f.FileID,
		VectorStoreID:   f.VectorStoreID,
		VectorStoreName: f.VectorStoreName,
		ThreadID:        f.ThreadID,
		UserID:          f.UserID,
		Size:            f.Size,
	}
}

// NewSchemaFileUpload creates a database entity from domain model.
func NewSchemaFileUpload(rec attachment.UploadRecord) *FileUpload {
	return &FileUpload{
		Filename:        rec.Filename,
		FileID:          rec.FileID,
		VectorStoreID:   rec.VectorStoreID,
		VectorStoreName: rec.VectorStoreName,
		ThreadID:        rec.ThreadID,
		UserID:          rec.UserID,
		Size:            rec.Size,
	}
}
