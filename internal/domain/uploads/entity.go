package uploads

// Status of an upload task
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// FileRef describes a file offered for upload
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// UploadTask tracks the client-side lifecycle of one file
type UploadTask struct {
	ID            string `json:"id"`
	SourceFileRef string `json:"sourceFileRef"`
	Size          int64  `json:"size"`
	Status        Status `json:"status"`
	Progress      int    `json:"progress"`
	Error         string `json:"error,omitempty"`
	ObjectURL     string `json:"objectUrl,omitempty"`
}
