package upload

import (
	"io"

	"github.com/janhq/gallery-api/internal/domain/media"
)

// State is a step of the batch state machine.
type State string

const (
	StateValidating   State = "validating"
	StateUploading    State = "uploading"
	StateUploadFailed State = "upload_failed"
	StateCommitting   State = "committing"
	StateCommitFailed State = "commit_failed"
	StateCommitted    State = "committed"
)

// File is one uploaded file. Open may be called more than once.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileMeta is the client supplied metadata of one file, matched to files by position.
type FileMeta struct {
	Width       int      `json:"width" validate:"required,gt=0"`
	Height      int      `json:"height" validate:"required,gt=0"`
	Title       string   `json:"title" validate:"max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}

// Request is one batch upload.
type Request struct {
	OwnerID  string
	Files    []File
	Metadata []FileMeta

	// Grouped makes the batch a single album.
	Grouped          bool
	AlbumTitle       string
	AlbumDescription string

	// AlbumID appends a grouped batch to an existing album of the owner.
	AlbumID string

	// Release frees local resources backing Files. It runs on every exit path.
	Release func()
}

// Result describes a committed batch.
type Result struct {
	BatchID  string   `json:"batch_id"`
	AlbumID  string   `json:"album_id,omitempty"`
	MediaIDs []string `json:"media_ids"`
}

// Descriptor is the per-file state of an upload session.
type Descriptor struct {
	Index    int
	Name     string
	MimeType string
	Ext      string
	Kind     media.Kind
	Bytes    int64
	Width    int
	Height   int
	MediaID  string
	Key      string
	Assets   media.Assets
	Meta     FileMeta
	file     File
}

// Session is the transient, request scoped state of one batch.
type Session struct {
	BatchID     string
	OwnerID     string
	Grouped     bool
	GroupID     string
	AppendTo    string
	Descriptors []*Descriptor
}

// Commit is the relational write of one batch. It must be applied in a single
// transaction.
type Commit struct {
	BatchID string

	// NewAlbum is created before the items when the batch starts a new album.
	NewAlbum *media.Album

	// AppendTo is the existing album the items join; ordinals continue after its
	// current maximum.
	AppendTo string

	// Items in client order. Ordinals are relative to the batch.
	Items []media.MediaItem
}
