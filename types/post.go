package types

import "time"

// Post represents a single piece of content authored by a user.
//
// A post starts its life as a draft and becomes published through an
// explicit publish operation. There is no reverse transition.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the human-readable headline of the post.
	Title string `json:"title" db:"title"`

	// Content is the full body text of the post.
	Content string `json:"content" db:"content"`

	// Published reports whether the post is visible as published.
	// New posts are always created with Published set to false.
	Published bool `json:"published" db:"published"`

	// AuthorID references the user who created the post. It is set at
	// creation time and never changes afterwards.
	AuthorID int `json:"author_id" db:"author_id"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Attachment represents a binary file (typically an image) associated
// with a post. The file contents live in object storage and are
// referenced by ObjectKey; only metadata is kept in the database.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID string `json:"id" db:"id"`

	// PostID is the identifier of the post this attachment belongs to.
	PostID int `json:"post_id" db:"post_id"`

	// ObjectKey is the identifier or path of the file in object storage.
	ObjectKey string `json:"object_key" db:"object_key"`

	// FileName is the original name of the uploaded file.
	FileName string `json:"file_name" db:"file_name"`

	// ContentType is the MIME type reported for the upload.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the size of the stored object in bytes.
	Size int64 `json:"size" db:"size"`

	// CreatedAt is the timestamp at which the attachment was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
