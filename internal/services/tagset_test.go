package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"tagset/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeTagRepo is an in-memory TagRepository for tests.
type fakeTagRepo struct {
	fields    map[string]*domain.TagField
	allowed   map[string][]domain.Tag // classification -> tags
	lookupErr error
	createErr error
	deleteErr error
	relabeled map[string]string
	deleted   []string
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{
		fields: map[string]*domain.TagField{
			"ticket:labels": {Kind: "ticket", Field: "labels", Classification: "colors", MaxTags: 3},
		},
		allowed: map[string][]domain.Tag{
			"colors": {
				{Code: "blue", Label: "Blue"},
				{Code: "green", Label: "Green"},
				{Code: "red", Label: "Red"},
				{Code: "yellow", Label: "Yellow"},
			},
		},
		relabeled: make(map[string]string),
	}
}

func (f *fakeTagRepo) LookupTagField(_ context.Context, kind, field string) (*domain.TagField, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	def, ok := f.fields[kind+":"+field]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return def, nil
}

func (f *fakeTagRepo) ListAllowed(ctx context.Context, kind, field string) ([]domain.Tag, error) {
	def, err := f.LookupTagField(ctx, kind, field)
	if err != nil {
		return nil, err
	}
	return f.allowed[def.Classification], nil
}

func (f *fakeTagRepo) ListAllowedPage(ctx context.Context, kind, field string, params domain.PaginationParams) ([]domain.Tag, int, error) {
	tags, err := f.ListAllowed(ctx, kind, field)
	if err != nil {
		return nil, 0, err
	}
	start := min(params.Offset(), len(tags))
	end := min(start+params.PageSize, len(tags))
	return tags[start:end], len(tags), nil
}

func (f *fakeTagRepo) CreateTag(_ context.Context, kind, field string, tag *domain.Tag) error {
	if f.createErr != nil {
		return f.createErr
	}
	def := f.fields[kind+":"+field]
	tag.ID = "tag-new"
	tag.Classification = def.Classification
	f.allowed[def.Classification] = append(f.allowed[def.Classification], *tag)
	return nil
}

func (f *fakeTagRepo) UpdateTagLabel(_ context.Context, _, _, code, label string) error {
	f.relabeled[code] = label
	return nil
}

func (f *fakeTagRepo) DeleteTag(_ context.Context, _, _, code string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, code)
	return nil
}

// fakeObjectTagRepo is an in-memory ObjectTagRepository for tests.
// EditCodes holds one lock for the whole read-edit-write, like the Postgres repository.
type fakeObjectTagRepo struct {
	mu      sync.Mutex
	codes   map[string][]string
	saved   []domain.Delta
	getErr  error
	saveErr error
}

func newFakeObjectTagRepo() *fakeObjectTagRepo {
	return &fakeObjectTagRepo{codes: make(map[string][]string)}
}

func (f *fakeObjectTagRepo) GetCodes(_ context.Context, kind, objectID, field string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored(kind + "/" + objectID + "." + field)
}

func (f *fakeObjectTagRepo) stored(key string) ([]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	codes := append([]string{}, f.codes[key]...)
	sort.Strings(codes)
	return codes, nil
}

func (f *fakeObjectTagRepo) EditCodes(_ context.Context, kind, objectID, field string, limit int, edit domain.CodesEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := kind + "/" + objectID + "." + field
	stored, err := f.stored(key)
	if err != nil {
		return err
	}
	delta, err := edit(stored)
	if err != nil {
		return err
	}
	if delta.IsEmpty() {
		return nil
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	removed := make(map[string]bool, len(delta.Removed))
	for _, code := range delta.Removed {
		removed[code] = true
	}
	var kept []string
	for _, code := range stored {
		if !removed[code] {
			kept = append(kept, code)
		}
	}
	kept = append(kept, delta.Added...)
	if len(kept) > limit && len(kept) > len(stored) {
		return domain.ErrCapacityExceeded
	}
	f.saved = append(f.saved, delta)
	f.codes[key] = kept
	return nil
}

func newTestService(tags *fakeTagRepo, objects *fakeObjectTagRepo) domain.TagSetService {
	return NewTagSetService(tags, objects, testLogger, 5*time.Second)
}

func TestTagSetService_GetObjectTags(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     func(tags *fakeTagRepo, objects *fakeObjectTagRepo)
		field     string
		wantValue []string
		wantText  string
		wantErrIs error
		wantErr   bool
	}{
		{
			name: "stored value",
			setup: func(tags *fakeTagRepo, objects *fakeObjectTagRepo) {
				objects.codes["ticket/T-1.labels"] = []string{"red", "blue"}
			},
			field:     "labels",
			wantValue: []string{"blue", "red"},
			wantText:  "blue red",
		},
		{
			name:      "no tags yet",
			setup:     func(tags *fakeTagRepo, objects *fakeObjectTagRepo) {},
			field:     "labels",
			wantValue: []string{},
			wantText:  " ",
		},
		{
			name:      "not a tag field",
			setup:     func(tags *fakeTagRepo, objects *fakeObjectTagRepo) {},
			field:     "title",
			wantErrIs: domain.ErrConfiguration,
		},
		{
			name: "stored over the limit",
			setup: func(tags *fakeTagRepo, objects *fakeObjectTagRepo) {
				objects.codes["ticket/T-1.labels"] = []string{"blue", "green", "red", "yellow"}
			},
			field:     "labels",
			wantValue: []string{"blue", "green", "red", "yellow"},
			wantText:  "blue green red yellow",
		},
		{
			name: "storage error",
			setup: func(tags *fakeTagRepo, objects *fakeObjectTagRepo) {
				objects.getErr = errors.New("db error")
			},
			field:   "labels",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
			tt.setup(tags, objects)
			svc := newTestService(tags, objects)

			view, err := svc.GetObjectTags(ctx, "ticket", "T-1", tt.field)
			if tt.wantErrIs != nil || tt.wantErr {
				require.Error(t, err)
				if tt.wantErrIs != nil {
					require.ErrorIs(t, err, tt.wantErrIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, view.Value)
			assert.Equal(t, tt.wantText, view.Text)
			assert.Equal(t, 3, view.Limit)
			assert.Len(t, view.Labels, len(tt.wantValue))
		})
	}
}

func TestTagSetService_ReplaceObjectTags(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		stored       []string
		codes        []string
		wantErrIs    error
		wantValue    []string
		wantDelta    domain.Delta
		wantModified []string
		wantSaved    int
	}{
		{
			name:         "swap on a full set",
			stored:       []string{"red", "blue", "green"},
			codes:        []string{"blue", "green", "yellow"},
			wantValue:    []string{"blue", "green", "yellow"},
			wantDelta:    domain.Delta{Added: []string{"yellow"}, Removed: []string{"red"}},
			wantModified: []string{"red", "yellow"},
			wantSaved:    1,
		},
		{
			name:         "same value writes nothing",
			stored:       []string{"red", "blue"},
			codes:        []string{"blue", "red"},
			wantValue:    []string{"blue", "red"},
			wantDelta:    domain.Delta{Added: []string{}, Removed: []string{}},
			wantModified: []string{},
			wantSaved:    0,
		},
		{
			name:         "duplicate codes count once",
			stored:       []string{"red"},
			codes:        []string{"red", "red", "blue", "green"},
			wantValue:    []string{"blue", "green", "red"},
			wantDelta:    domain.Delta{Added: []string{"blue", "green"}, Removed: []string{}},
			wantModified: []string{"blue", "green"},
			wantSaved:    1,
		},
		{
			name:         "shrinks a value stored over the limit",
			stored:       []string{"blue", "green", "red", "yellow"},
			codes:        []string{"blue"},
			wantValue:    []string{"blue"},
			wantDelta:    domain.Delta{Added: []string{}, Removed: []string{"green", "red", "yellow"}},
			wantModified: []string{"green", "red", "yellow"},
			wantSaved:    1,
		},
		{
			name:         "drops a code no longer allowed",
			stored:       []string{"purple", "red"},
			codes:        []string{"red"},
			wantValue:    []string{"red"},
			wantDelta:    domain.Delta{Added: []string{}, Removed: []string{"purple"}},
			wantModified: []string{"purple"},
			wantSaved:    1,
		},
		{
			name:      "invalid code",
			stored:    []string{"red"},
			codes:     []string{"purple"},
			wantErrIs: domain.ErrInvalidValue,
		},
		{
			name:      "too many codes",
			stored:    []string{"red"},
			codes:     []string{"red", "blue", "green", "yellow"},
			wantErrIs: domain.ErrCapacityExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
			objects.codes["ticket/T-1.labels"] = tt.stored
			svc := newTestService(tags, objects)

			change, err := svc.ReplaceObjectTags(ctx, "ticket", "T-1", "labels", tt.codes)
			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
				require.Empty(t, objects.saved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, change.Value)
			assert.Equal(t, tt.wantDelta, change.Delta)
			assert.Equal(t, tt.wantModified, change.Modified)
			assert.Equal(t, tt.wantSaved > 0, change.Changed)
			assert.Len(t, objects.saved, tt.wantSaved)

			stored, err := objects.GetCodes(ctx, "ticket", "T-1", "labels")
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, stored)
		})
	}
}

func TestTagSetService_ReplaceObjectTagsSaveError(t *testing.T) {
	tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
	objects.saveErr = errors.New("db error")
	svc := newTestService(tags, objects)

	_, err := svc.ReplaceObjectTags(context.Background(), "ticket", "T-1", "labels", []string{"red"})
	require.ErrorIs(t, err, objects.saveErr)
	assert.Empty(t, objects.codes["ticket/T-1.labels"])
}

func TestTagSetService_ConcurrentEditsKeepLimit(t *testing.T) {
	ctx := context.Background()
	tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
	objects.codes["ticket/T-1.labels"] = []string{"blue", "red"}
	svc := newTestService(tags, objects)

	adds := []string{"green", "yellow"}
	errs := make([]error, len(adds))
	var wg sync.WaitGroup
	for i, code := range adds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ApplyObjectDelta(ctx, "ticket", "T-1", "labels", domain.Delta{Added: []string{code}})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrCapacityExceeded)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	view, err := svc.GetObjectTags(ctx, "ticket", "T-1", "labels")
	require.NoError(t, err)
	assert.Len(t, view.Value, 3)
}

func TestTagSetService_ApplyObjectDelta(t *testing.T) {
	ctx := context.Background()
	tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
	objects.codes["ticket/T-1.labels"] = []string{"red", "blue"}
	svc := newTestService(tags, objects)

	change, err := svc.ApplyObjectDelta(ctx, "ticket", "T-1", "labels", domain.Delta{
		Added:   []string{"green", "blue"},
		Removed: []string{"red", "yellow"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"blue", "green"}, change.Value)
	assert.Equal(t, domain.Delta{Added: []string{"green"}, Removed: []string{"red"}}, change.Delta)
	require.Len(t, objects.saved, 1)

	// a delta that cancels out is not written
	change, err = svc.ApplyObjectDelta(ctx, "ticket", "T-1", "labels", domain.Delta{
		Added:   []string{"green"},
		Removed: []string{"green"},
	})
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Equal(t, []string{"green"}, change.Modified)
	assert.Len(t, objects.saved, 1)
}

func TestTagSetService_MergeObjectTags(t *testing.T) {
	ctx := context.Background()
	tags, objects := newFakeTagRepo(), newFakeObjectTagRepo()
	tags.fields["ticket:labels"].MaxTags = 5
	// someone else added yellow since the client read red+blue
	objects.codes["ticket/T-1.labels"] = []string{"red", "blue", "yellow"}
	svc := newTestService(tags, objects)

	change, err := svc.MergeObjectTags(ctx, "ticket", "T-1", "labels",
		[]string{"red", "blue"},
		[]string{"blue", "green"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"blue", "green", "yellow"}, change.Value)
	assert.Equal(t, domain.Delta{Added: []string{"green"}, Removed: []string{"red"}}, change.Delta)

	_, err = svc.MergeObjectTags(ctx, "ticket", "T-1", "labels", []string{"purple"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestTagSetService_CheckTags(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeTagRepo(), newFakeObjectTagRepo())

	invalid, err := svc.CheckTags(ctx, "ticket", "labels", []string{"red", "purple", "blue", "pink"})
	require.NoError(t, err)
	assert.Equal(t, []string{"purple", "pink"}, invalid)

	invalid, err = svc.CheckTags(ctx, "ticket", "labels", nil)
	require.NoError(t, err)
	assert.Empty(t, invalid)

	_, err = svc.CheckTags(ctx, "ticket", "title", []string{"red"})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestTagSetService_ResolveLabel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeTagRepo(), newFakeObjectTagRepo())

	code, err := svc.ResolveLabel(ctx, "ticket", "labels", "Yellow")
	require.NoError(t, err)
	assert.Equal(t, "yellow", code)

	_, err = svc.ResolveLabel(ctx, "ticket", "labels", "Mauve")
	require.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestTagSetService_AllowedTags(t *testing.T) {
	ctx := context.Background()
	tags := newFakeTagRepo()
	svc := newTestService(tags, newFakeObjectTagRepo())

	page, total, err := svc.ListAllowedTags(ctx, "ticket", "labels", domain.PaginationParams{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "yellow", page[0].Code)

	_, _, err = svc.ListAllowedTags(ctx, "ticket", "title", domain.PaginationParams{Page: 1, PageSize: 10})
	require.ErrorIs(t, err, domain.ErrConfiguration)

	tag := domain.NewTag("purple", "Purple", "", time.Time{}, time.Time{})
	require.NoError(t, svc.CreateAllowedTag(ctx, "ticket", "labels", tag))
	assert.Equal(t, "tag-new", tag.ID)
	assert.False(t, tag.CreatedAt.IsZero())

	// the new tag is usable right away
	invalid, err := svc.CheckTags(ctx, "ticket", "labels", []string{"purple"})
	require.NoError(t, err)
	assert.Empty(t, invalid)

	require.ErrorIs(t, svc.CreateAllowedTag(ctx, "ticket", "labels", domain.NewTag("white", "", "", time.Time{}, time.Time{})), domain.ErrInvalidValue)
	require.ErrorIs(t, svc.RelabelAllowedTag(ctx, "ticket", "labels", "red", "  "), domain.ErrInvalidValue)
	assert.Empty(t, tags.relabeled)

	tags.createErr = domain.ErrConflict
	require.ErrorIs(t, svc.CreateAllowedTag(ctx, "ticket", "labels", domain.NewTag("red", "Red", "", time.Time{}, time.Time{})), domain.ErrConflict)

	require.NoError(t, svc.RelabelAllowedTag(ctx, "ticket", "labels", "red", "Crimson"))
	assert.Equal(t, "Crimson", tags.relabeled["red"])

	require.NoError(t, svc.DeleteAllowedTag(ctx, "ticket", "labels", "red"))
	assert.Equal(t, []string{"red"}, tags.deleted)

	tags.deleteErr = domain.ErrConflict
	require.ErrorIs(t, svc.DeleteAllowedTag(ctx, "ticket", "labels", "blue"), domain.ErrConflict)

	tags.lookupErr = errors.New("db error")
	err = svc.RelabelAllowedTag(ctx, "ticket", "labels", "red", "Red")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrConfiguration)
}
