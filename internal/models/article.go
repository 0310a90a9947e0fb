package models

import "time"

// Article is the single mutable projection of a wiki document.
// Title, Description and Body are the content-bearing fields tracked by revisions;
// everything else is metadata.
type Article struct {
	Model
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"not null;unique" json:"slug"`
	Description *string    `json:"description"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	Published   bool       `gorm:"not null;default:false" json:"published"`
	Featured    bool       `gorm:"not null;default:false" json:"featured"`
	PublishedAt *time.Time `json:"publishedAt"`
	Views       uint       `gorm:"not null;default:0" json:"views"`
	CategoryID  uint       `gorm:"not null;index" json:"categoryId"`
	Category    *Category  `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	AuthorID    uint       `gorm:"not null" json:"authorId"`
	Author      *User      `gorm:"constraint:OnDelete:RESTRICT" json:"author,omitempty"`
	Tags        []Tag      `gorm:"many2many:article_tags;constraint:OnDelete:CASCADE" json:"tags"`
}

// Content returns the versioned part of the article.
func (a *Article) Content() Content {
	return Content{Title: a.Title, Description: a.Description, Body: a.Body}
}

// ApplyContent overwrites the versioned part of the article.
func (a *Article) ApplyContent(c Content) {
	a.Title = c.Title
	a.Description = cloneString(c.Description)
	a.Body = c.Body
}

// Content is the snapshot of an article's content-bearing fields.
type Content struct {
	Title       string
	Description *string
	Body        string
}

type Tag struct {
	Model
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"not null;unique" json:"slug"`
}

// ArticleListItem is an article with the number of revisions recorded for it.
type ArticleListItem struct {
	Article
	RevisionCount int64 `json:"revisionCount"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
