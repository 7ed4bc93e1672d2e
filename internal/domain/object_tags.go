package domain

import "context"

// ObjectTagRepository stores the tag set values of objects.
type ObjectTagRepository interface {
	// GetCodes returns the stored codes of kind/objectID.field, sorted. An object without tags yields an empty slice.
	GetCodes(ctx context.Context, kind, objectID, field string) ([]string, error)
	// EditCodes runs edit on the stored codes of kind/objectID.field and writes the delta it returns,
	// all in one transaction that holds the object's lock. Nothing is written when edit fails, and
	// the write fails with ErrCapacityExceeded if it grows the value past limit.
	EditCodes(ctx context.Context, kind, objectID, field string, limit int, edit CodesEdit) error
}

// CodesEdit receives the stored codes, sorted, and returns the changes to write.
type CodesEdit func(stored []string) (Delta, error)

// TagSetView is the value of one object's tag field.
// swagger:model TagSetView
type TagSetView struct {
	Kind     string      `json:"kind"`
	ObjectID string      `json:"object_id"`
	Field    string      `json:"field"`
	Value    []string    `json:"value"`
	Labels   []CodeLabel `json:"labels"`
	Tags     []Tag       `json:"tags"`
	Text     string      `json:"text"`
	Limit    int         `json:"limit"`
}

// TagSetChange is the outcome of an edit: the new value, what was written and which codes the edit touched.
// swagger:model TagSetChange
type TagSetChange struct {
	TagSetView
	Delta    Delta    `json:"delta"`
	Modified []string `json:"modified"`
	Changed  bool     `json:"changed"`
}

// TagSetService defines tag field use cases for stored objects and their allow-lists.
type TagSetService interface {
	GetObjectTags(ctx context.Context, kind, objectID, field string) (*TagSetView, error)
	// ReplaceObjectTags sets the value to codes, writing only the difference.
	ReplaceObjectTags(ctx context.Context, kind, objectID, field string, codes []string) (*TagSetChange, error)
	// ApplyObjectDelta removes delta.Removed then adds delta.Added to the stored value.
	ApplyObjectDelta(ctx context.Context, kind, objectID, field string, delta Delta) (*TagSetChange, error)
	// MergeObjectTags replays the edit that turned base into edited onto the stored value.
	MergeObjectTags(ctx context.Context, kind, objectID, field string, base, edited []string) (*TagSetChange, error)
	// CheckTags returns the codes that are not in the field's allow-list.
	CheckTags(ctx context.Context, kind, field string, codes []string) ([]string, error)
	ResolveLabel(ctx context.Context, kind, field, label string) (string, error)

	ListAllowedTags(ctx context.Context, kind, field string, params PaginationParams) ([]Tag, int, error)
	CreateAllowedTag(ctx context.Context, kind, field string, tag *Tag) error
	RelabelAllowedTag(ctx context.Context, kind, field, code, label string) error
	DeleteAllowedTag(ctx context.Context, kind, field, code string) error
}
