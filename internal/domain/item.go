package domain

import "time"

// Item is one entry in the shared file catalog.
type Item struct {
	ItemID        string    `json:"id" dynamodbav:"item_id"`
	Title         string    `json:"title" dynamodbav:"title"`
	Year          int       `json:"year,omitempty" dynamodbav:"year"`
	Quality       string    `json:"quality,omitempty" dynamodbav:"quality"`
	Language      string    `json:"language,omitempty" dynamodbav:"language"`
	Object        string    `json:"object" dynamodbav:"object"` // S3 key of the artifact
	Size          int64     `json:"size" dynamodbav:"size"`
	ContentType   string    `json:"content_type" dynamodbav:"content_type"`
	UploadedBy    string    `json:"uploaded_by" dynamodbav:"uploaded_by"`
	DownloadCount int       `json:"download_count" dynamodbav:"download_count"`
	SearchCount   int       `json:"search_count" dynamodbav:"search_count"`
	Active        bool      `json:"active" dynamodbav:"active"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateItemRequest struct {
	Title    string `json:"title" validate:"required"`
	Year     int    `json:"year"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
}
