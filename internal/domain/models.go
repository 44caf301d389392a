package domain

import "time"

// Image download outcomes recorded on ImageRecord.Status.
const (
	ImageDownloaded = "downloaded"
	ImageFailed     = "failed"
)

// Archive run states recorded on ArchiveRecord.Status.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// ArticleData is the extracted article, ready to be assembled.
type ArticleData struct {
	Title       string
	Description string
	Content     string // serialized markup of the content container
}

// ImageRecord describes one image found in the content container.
type ImageRecord struct {
	Sequence  int    `yaml:"sequence" json:"sequence"`
	SourceURL string `yaml:"source" json:"source"`
	LocalFile string `yaml:"file" json:"file"`
	Status    string `yaml:"status" json:"status"`
	Error     string `yaml:"error,omitempty" json:"error,omitempty"`
}

// ArchiveRequest is the payload for the API
type ArchiveRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"` // Bypass the deduplication window
}

// ArchiveTask represents a single URL to be archived by a worker
type ArchiveTask struct {
	ID    string
	URL   string
	Force bool
}

// ArchiveRecord is one archive run as persisted in the archives table.
type ArchiveRecord struct {
	ID               string
	URL              string
	Title            string
	Status           string
	FailReason       string
	ImagesProcessed  int
	ImagesDownloaded int
	ImagesFailed     int
	OutputPath       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ArchiveStatusResponse is the API response for a URL status query
type ArchiveStatusResponse struct {
	ID               string    `json:"archive_id"`
	URL              string    `json:"url"`
	Title            string    `json:"title,omitempty"`
	Status           string    `json:"status"`
	FailReason       string    `json:"fail_reason,omitempty"`
	ImagesProcessed  int       `json:"images_processed"`
	ImagesDownloaded int       `json:"images_downloaded"`
	ImagesFailed     int       `json:"images_failed"`
	OutputPath       string    `json:"output_path,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}
