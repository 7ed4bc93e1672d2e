package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tagset/internal/domain"
)

type tagSetService struct {
	tagRepo        domain.TagRepository
	objectTagRepo  domain.ObjectTagRepository
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewTagSetService creates a TagSetService. The tag repository doubles as the field lookup and
// allow-list provider of every TagSet the service builds.
func NewTagSetService(
	tagRepo domain.TagRepository,
	objectTagRepo domain.ObjectTagRepository,
	logger *slog.Logger,
	timeout time.Duration,
) domain.TagSetService {
	return &tagSetService{
		tagRepo:        tagRepo,
		objectTagRepo:  objectTagRepo,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *tagSetService) newSet(ctx context.Context, kind, field string) (*domain.TagSet, error) {
	return domain.NewTagSet(ctx, s.tagRepo, s.tagRepo, s.logger, kind, field, 0)
}

// setOf builds a detached tag set holding codes.
func (s *tagSetService) setOf(ctx context.Context, kind, field string, codes []string) (*domain.TagSet, error) {
	set, err := s.newSet(ctx, kind, field)
	if err != nil {
		return nil, err
	}
	if err := set.SetValue(ctx, codes); err != nil {
		return nil, err
	}
	return set, nil
}

// edit applies fn to the stored value of the object while the repository holds its lock,
// and writes the resulting changes in the same transaction.
func (s *tagSetService) edit(ctx context.Context, kind, objectID, field string, fn func(set *domain.TagSet) error) (*domain.TagSetChange, error) {
	set, err := s.newSet(ctx, kind, field)
	if err != nil {
		return nil, err
	}
	var change *domain.TagSetChange
	err = s.objectTagRepo.EditCodes(ctx, kind, objectID, field, set.Limit(), func(stored []string) (domain.Delta, error) {
		if err := set.Restore(ctx, stored); err != nil {
			return domain.Delta{}, fmt.Errorf("load object tags: %w", err)
		}
		if err := fn(set); err != nil {
			return domain.Delta{}, err
		}
		change = &domain.TagSetChange{
			TagSetView: newView(set, objectID),
			Delta:      set.Pending(),
			Modified:   set.ModifiedTags(),
			Changed:    set.Changed(),
		}
		return change.Delta, nil
	})
	if err != nil {
		return nil, err
	}
	if change.Changed {
		s.logger.InfoContext(ctx, "tag set saved",
			"kind", kind,
			"object_id", objectID,
			"field", field,
			"added", change.Delta.Added,
			"removed", change.Delta.Removed,
		)
	}
	return change, nil
}

func newView(set *domain.TagSet, objectID string) domain.TagSetView {
	return domain.TagSetView{
		Kind:     set.Kind(),
		ObjectID: objectID,
		Field:    set.Field(),
		Value:    set.Value(),
		Labels:   set.Labels(),
		Tags:     set.Tags(),
		Text:     set.String(),
		Limit:    set.Limit(),
	}
}

func (s *tagSetService) GetObjectTags(ctx context.Context, kind, objectID, field string) (*domain.TagSetView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	set, err := s.newSet(ctx, kind, field)
	if err != nil {
		return nil, err
	}
	codes, err := s.objectTagRepo.GetCodes(ctx, kind, objectID, field)
	if err != nil {
		return nil, fmt.Errorf("get object tags: %w", err)
	}
	if err := set.Restore(ctx, codes); err != nil {
		return nil, fmt.Errorf("load object tags: %w", err)
	}
	view := newView(set, objectID)
	return &view, nil
}

func (s *tagSetService) ReplaceObjectTags(ctx context.Context, kind, objectID, field string, codes []string) (*domain.TagSetChange, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.edit(ctx, kind, objectID, field, func(set *domain.TagSet) error {
		return set.GenerateDiffFromTags(ctx, codes)
	})
}

func (s *tagSetService) ApplyObjectDelta(ctx context.Context, kind, objectID, field string, delta domain.Delta) (*domain.TagSetChange, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.edit(ctx, kind, objectID, field, func(set *domain.TagSet) error {
		return set.ApplyDelta(ctx, delta)
	})
}

func (s *tagSetService) MergeObjectTags(ctx context.Context, kind, objectID, field string, base, edited []string) (*domain.TagSetChange, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	baseSet, err := s.setOf(ctx, kind, field, base)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	editedSet, err := s.setOf(ctx, kind, field, edited)
	if err != nil {
		return nil, fmt.Errorf("edited: %w", err)
	}
	delta, err := baseSet.Delta(ctx, editedSet)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, kind, objectID, field, func(set *domain.TagSet) error {
		return set.ApplyDelta(ctx, delta)
	})
}

func (s *tagSetService) CheckTags(ctx context.Context, kind, field string, codes []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	set, err := s.newSet(ctx, kind, field)
	if err != nil {
		return nil, err
	}
	invalid := []string{}
	for _, code := range codes {
		if !set.IsValidTag(ctx, code) {
			invalid = append(invalid, code)
		}
	}
	return invalid, nil
}

func (s *tagSetService) ResolveLabel(ctx context.Context, kind, field, label string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	set, err := s.newSet(ctx, kind, field)
	if err != nil {
		return "", err
	}
	return set.TagFromLabel(ctx, label)
}

// requireField maps an undeclared field to ErrConfiguration, the way NewTagSet does.
func (s *tagSetService) requireField(ctx context.Context, kind, field string) error {
	if _, err := s.tagRepo.LookupTagField(ctx, kind, field); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("field %s:%s: %w", kind, field, domain.ErrConfiguration)
		}
		return fmt.Errorf("lookup tag field: %w", err)
	}
	return nil
}

func (s *tagSetService) ListAllowedTags(ctx context.Context, kind, field string, params domain.PaginationParams) ([]domain.Tag, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.requireField(ctx, kind, field); err != nil {
		return nil, 0, err
	}
	tags, total, err := s.tagRepo.ListAllowedPage(ctx, kind, field, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list allowed tags: %w", err)
	}
	return tags, total, nil
}

func (s *tagSetService) CreateAllowedTag(ctx context.Context, kind, field string, tag *domain.Tag) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if strings.TrimSpace(tag.Label) == "" {
		return fmt.Errorf("tag %q needs a label: %w", tag.Code, domain.ErrInvalidValue)
	}
	if err := s.requireField(ctx, kind, field); err != nil {
		return err
	}
	now := time.Now()
	tag.CreatedAt = now
	tag.UpdatedAt = now
	if err := s.tagRepo.CreateTag(ctx, kind, field, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

func (s *tagSetService) RelabelAllowedTag(ctx context.Context, kind, field, code, label string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("tag %q needs a label: %w", code, domain.ErrInvalidValue)
	}
	if err := s.requireField(ctx, kind, field); err != nil {
		return err
	}
	if err := s.tagRepo.UpdateTagLabel(ctx, kind, field, code, label); err != nil {
		return fmt.Errorf("relabel tag: %w", err)
	}
	return nil
}

func (s *tagSetService) DeleteAllowedTag(ctx context.Context, kind, field, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.requireField(ctx, kind, field); err != nil {
		return err
	}
	if err := s.tagRepo.DeleteTag(ctx, kind, field, code); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
