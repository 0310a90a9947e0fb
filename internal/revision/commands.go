package revision

import (
	"content-wiki/internal/models"
	"content-wiki/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateCommand carries the fields of a new article.
type CreateCommand struct {
	Title       string   `mapstructure:"title"`
	Slug        string   `mapstructure:"slug"`
	Description *string  `mapstructure:"description"`
	Body        string   `mapstructure:"body"`
	CategoryID  uint     `mapstructure:"categoryId"`
	Published   bool     `mapstructure:"published"`
	Featured    bool     `mapstructure:"featured"`
	Tags        []string `mapstructure:"tags"`
}

func (c *CreateCommand) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required.Error("title is required")),
		validation.Field(&c.Slug,
			validation.Required.Error("slug is required"),
			validation.Match(models.SlugPattern).Error("slug must be lower case words separated by dashes"),
		),
		validation.Field(&c.CategoryID, validation.Required.Error("categoryId is required")),
		validation.Field(&c.Tags, validation.Each(validation.Required.Error("tags must not be empty"))),
	)
}

// UpdateCommand carries the changes to an existing article. Nil fields keep their current value.
// ClearDescription removes the description; requests set it by sending a null description.
type UpdateCommand struct {
	Title            *string   `mapstructure:"title"`
	Slug             *string   `mapstructure:"slug"`
	Description      *string   `mapstructure:"description"`
	ClearDescription bool      `mapstructure:"-"`
	Body             *string   `mapstructure:"body"`
	CategoryID       *uint     `mapstructure:"categoryId"`
	Published        *bool     `mapstructure:"published"`
	Featured         *bool     `mapstructure:"featured"`
	Tags             *[]string `mapstructure:"tags"`
}

func (c *UpdateCommand) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.NilOrNotEmpty.Error("title must not be empty")),
		validation.Field(&c.Slug,
			validation.NilOrNotEmpty.Error("slug must not be empty"),
			validation.Match(models.SlugPattern).Error("slug must be lower case words separated by dashes"),
		),
		validation.Field(&c.CategoryID, validation.NilOrNotEmpty.Error("categoryId must not be 0")),
	)
}

// apply returns the content the article has after the command.
func (c *UpdateCommand) apply(current models.Content) models.Content {
	proposed := current
	if c.Title != nil {
		proposed.Title = *c.Title
	}
	switch {
	case c.ClearDescription:
		proposed.Description = nil
	case c.Description != nil:
		description := *c.Description
		proposed.Description = &description
	}
	if c.Body != nil {
		proposed.Body = *c.Body
	}
	return proposed
}

// tagsOf turns tag names into tags; names that yield the same slug are merged.
func tagsOf(names []string) []models.Tag {
	tags := make([]models.Tag, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		slug := utils.Slugify(name)
		if len(slug) == 0 || seen[slug] {
			continue
		}
		seen[slug] = true
		tags = append(tags, models.Tag{Name: name, Slug: slug})
	}
	return tags
}
