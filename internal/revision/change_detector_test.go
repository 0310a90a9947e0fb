package revision_test

import (
	"content-wiki/internal/models"
	"content-wiki/internal/revision"
	"testing"
)

func TestChanged(t *testing.T) {
	empty := ""
	intro := "intro"
	otherIntro := "intro"

	tests := []struct {
		name     string
		current  models.Content
		proposed models.Content
		want     bool
	}{
		{"identical", models.Content{Title: "T", Body: "b"}, models.Content{Title: "T", Body: "b"}, false},
		{"sameDescriptionDifferentPointer", models.Content{Title: "T", Description: &intro}, models.Content{Title: "T", Description: &otherIntro}, false},
		{"title", models.Content{Title: "T"}, models.Content{Title: "T2"}, true},
		{"body", models.Content{Body: "b"}, models.Content{Body: "b2"}, true},
		{"trailingWhitespace", models.Content{Body: "b"}, models.Content{Body: "b "}, true},
		{"descriptionAdded", models.Content{}, models.Content{Description: &intro}, true},
		{"descriptionRemoved", models.Content{Description: &intro}, models.Content{}, true},
		{"missingVersusEmptyDescription", models.Content{}, models.Content{Description: &empty}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := revision.Changed(tt.current, tt.proposed); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}
