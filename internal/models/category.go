package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"regexp"
)

// SlugPattern is the accepted format of article and category slugs.
var SlugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Category is a node of the category tree. Articles reference exactly one category.
type Category struct {
	Model
	Title       string    `gorm:"not null" json:"title" mapstructure:"title"`
	Slug        string    `gorm:"not null;unique" json:"slug" mapstructure:"slug"`
	Description *string   `json:"description" mapstructure:"description"`
	Icon        *string   `json:"icon" mapstructure:"icon"`
	Order       int       `gorm:"column:position;not null;default:0" json:"order" mapstructure:"order"`
	ParentID    *uint     `json:"parentId" mapstructure:"parentId"`
	Parent      *Category `gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL" json:"-" mapstructure:"-"`
}

func (c *Category) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required.Error("title is required")),
		validation.Field(&c.Slug,
			validation.Required.Error("slug is required"),
			validation.Match(SlugPattern).Error("slug must be lower case words separated by dashes"),
		),
	)
}
