package upload

import "time"

// Record tracks one file written to the upload directory until it expires.
type Record struct {
	ID         string    `gorm:"primaryKey;size:26"` // ULID length
	SessionID  string    `gorm:"type:varchar(26);index;not null"`
	FileName   string    `gorm:"type:varchar(255);not null"`
	StoredPath string    `gorm:"type:varchar(1024);not null"`
	MimeType   string    `gorm:"type:varchar(128);not null"`
	Size       int64     `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	CreatedAt  time.Time
}

func (Record) TableName() string { return "uploaded_files" }
