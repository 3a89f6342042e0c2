package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/inkwell-press/apiserver/types"
)

// AttachmentRepository handles persistence for post attachments.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (id, post_id, object_key, file_name, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		attachment.ID,
		attachment.PostID,
		attachment.ObjectKey,
		attachment.FileName,
		attachment.ContentType,
		attachment.Size,
		attachment.CreatedAt,
	); err != nil {
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (types.Attachment, error) {
	const query = `
		SELECT id, post_id, object_key, file_name, content_type, size, created_at
		FROM attachments
		WHERE id = $1`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.PostID,
		&attachment.ObjectKey,
		&attachment.FileName,
		&attachment.ContentType,
		&attachment.Size,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	const query = `
		SELECT id, post_id, object_key, file_name, content_type, size, created_at
		FROM attachments
		WHERE post_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.PostID,
			&attachment.ObjectKey,
			&attachment.FileName,
			&attachment.ContentType,
			&attachment.Size,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attachments, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attachments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
