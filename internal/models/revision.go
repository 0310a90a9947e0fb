package models

import "time"

type ChangeKind string

const (
	ChangeKindCreate  ChangeKind = "CREATE"
	ChangeKindUpdate  ChangeKind = "UPDATE"
	ChangeKindRestore ChangeKind = "RESTORE"
	// ChangeKindDelete is reserved; no revision of this kind is ever written.
	ChangeKindDelete ChangeKind = "DELETE"
)

// Revision is an immutable snapshot of an article's content.
// (ArticleID, Version) is unique; versions start at 1 and have no gaps.
type Revision struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	ArticleID   uint       `gorm:"not null;uniqueIndex:idx_revisions_article_version,priority:1" json:"articleId"`
	Article     *Article   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Version     uint       `gorm:"not null;uniqueIndex:idx_revisions_article_version,priority:2" json:"version"`
	Title       string     `gorm:"not null" json:"title"`
	Description *string    `json:"description"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	ChangeKind  ChangeKind `gorm:"not null" json:"changeKind"`
	Comment     *string    `json:"comment"`
	AuthorID    uint       `gorm:"not null" json:"authorId"`
	Author      *User      `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (r *Revision) Content() Content {
	return Content{Title: r.Title, Description: r.Description, Body: r.Body}
}
