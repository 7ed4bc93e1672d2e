package domain

import (
	"context"
	"time"
)

// DefaultTagLimit is the maximum number of tags a tag set holds when the field does not say otherwise.
const DefaultTagLimit = 12

// Tag is an allowed value of a tag field.
// swagger:model Tag
type Tag struct {
	ID             string    `json:"id"`
	Classification string    `json:"classification"`
	Code           string    `json:"code"`
	Label          string    `json:"label"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewTag returns a new Tag with the given fields. ID and classification are set by the repository on create.
func NewTag(code, label, description string, createdAt, updatedAt time.Time) *Tag {
	return &Tag{
		Code:        code,
		Label:       label,
		Description: description,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// CodeLabel pairs a tag code with its display label.
type CodeLabel struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// TagField declares that Kind.Field holds a tag set.
// Classification identifies the allow-list; several fields may share one.
// swagger:model TagField
type TagField struct {
	Kind           string `json:"kind"`
	Field          string `json:"field"`
	Classification string `json:"classification"`
	MaxTags        int    `json:"max_tags"`
}

// Limit returns the field's cardinality limit, falling back to DefaultTagLimit.
func (f *TagField) Limit() int {
	if f.MaxTags <= 0 {
		return DefaultTagLimit
	}
	return f.MaxTags
}

// TagFieldLookup resolves tag field declarations.
type TagFieldLookup interface {
	// LookupTagField returns the declaration for kind.field, or ErrNotFound when the pair is not a tag field.
	LookupTagField(ctx context.Context, kind, field string) (*TagField, error)
}

// AllowedTagProvider lists the tags currently valid for a field.
type AllowedTagProvider interface {
	ListAllowed(ctx context.Context, kind, field string) ([]Tag, error)
}

// TagRepository defines storage for tag field declarations and their allowed tags.
type TagRepository interface {
	TagFieldLookup
	AllowedTagProvider
	// ListAllowedPage returns one page of allowed tags ordered by code, plus the total count.
	ListAllowedPage(ctx context.Context, kind, field string, params PaginationParams) ([]Tag, int, error)
	// CreateTag adds tag to the allow-list of kind.field. Returns ErrConflict on a duplicate code or label.
	CreateTag(ctx context.Context, kind, field string, tag *Tag) error
	UpdateTagLabel(ctx context.Context, kind, field, code, label string) error
	// DeleteTag removes the tag from the allow-list. Returns ErrConflict while objects still use it.
	DeleteTag(ctx context.Context, kind, field, code string) error
}
