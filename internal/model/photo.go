package model

import "time"

// UnknownUploader is recorded when the uploading principal has no username.
const UnknownUploader = "Unknown"

// Photo binds one stored image file to a fault (`photos` table). PhotoPath
// is relative to the upload root.
type Photo struct {
	PhotoID    int64     `json:"PhotoId"`
	FaultID    int64     `json:"FaultId"`
	PhotoPath  string    `json:"PhotoPath"`
	UploadedAt time.Time `json:"UploadedAt"`
	UploadedBy string    `json:"UploadedBy"`
}
