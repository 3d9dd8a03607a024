package content

import (
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// MaxCommentLength - максимальная длина комментария.
const MaxCommentLength = 2000

// Comment - комментарий к публикации. Может быть целью LIKE.
type Comment struct {
	ID        string
	OwnerID   string
	ContentID string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Seq       int64
}

// NewComment создаёт комментарий.
func NewComment(ownerID, contentID, body string) (*Comment, error) {
	now := time.Now().UTC()
	c := &Comment{
		ID:        shared.NewID(),
		OwnerID:   ownerID,
		ContentID: contentID,
		Body:      strings.TrimSpace(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return c, c.Validate()
}

// Validate проверяет структурные инварианты.
func (c *Comment) Validate() error {
	if err := shared.ValidateID("comment", "owner", c.OwnerID); err != nil {
		return err
	}
	if err := shared.ValidateID("comment", "content", c.ContentID); err != nil {
		return err
	}
	if c.Body == "" {
		return shared.ErrCommentEmpty
	}
	if len(c.Body) > MaxCommentLength {
		return shared.NewDomainError("comment", "Validate", shared.ErrInvalidInput, "comment is too long")
	}
	return nil
}

// OwnerRef реализует ownership.Owned.
func (c *Comment) OwnerRef() string { return c.OwnerID }

// Edit заменяет текст комментария.
func (c *Comment) Edit(body string) error {
	body = strings.TrimSpace(body)
	if body == c.Body {
		return shared.NewDomainError("comment", "Update", shared.ErrInvalidOperation, "update contains no changes")
	}
	if body == "" {
		return shared.ErrCommentEmpty
	}
	c.Body = body
	c.UpdatedAt = time.Now().UTC()
	return nil
}
