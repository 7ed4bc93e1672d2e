package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type tagState int

const (
	statePreserved tagState = iota
	stateAdded
	stateRemoved
)

type tagEntry struct {
	state tagState
	tag   Tag
}

// Delta is the difference between two tag set values, as sorted code lists.
type Delta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// IsEmpty reports whether the delta neither adds nor removes anything.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DeltaTags is Delta with the full tag records, sorted by code.
type DeltaTags struct {
	Added   []Tag `json:"added"`
	Removed []Tag `json:"removed"`
}

// TagSet is the value of a tag field: a bounded set of codes drawn from the field's allow-list.
//
// Besides the current membership it tracks what changed since the last SetValue (the baseline).
// Every code it knows about is in exactly one state: preserved (in the baseline, still present),
// added (not in the baseline) or removed (in the baseline, gone). The touched set records every
// code an AddTag or RemoveTag actually moved, including moves that later cancelled out.
//
// A TagSet is owned by a single goroutine; it does no locking.
type TagSet struct {
	kind           string
	field          string
	classification string
	limit          int

	allowed AllowedTagProvider
	logger  *slog.Logger

	entries  map[string]*tagEntry
	touched  map[string]Tag
	original map[string]Tag
}

// NewTagSet returns an empty tag set bound to kind.field.
// The field must be declared by fields, otherwise the error wraps ErrConfiguration.
// A limit <= 0 selects the limit declared for the field (DefaultTagLimit when the field declares none).
func NewTagSet(ctx context.Context, fields TagFieldLookup, allowed AllowedTagProvider, logger *slog.Logger, kind, field string, limit int) (*TagSet, error) {
	def, err := fields.LookupTagField(ctx, kind, field)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("field %s:%s: %w", kind, field, ErrConfiguration)
		}
		return nil, fmt.Errorf("lookup tag field %s:%s: %w", kind, field, err)
	}
	if limit <= 0 {
		limit = def.Limit()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return newTagSet(allowed, logger, kind, field, def.Classification, limit), nil
}

func newTagSet(allowed AllowedTagProvider, logger *slog.Logger, kind, field, classification string, limit int) *TagSet {
	return &TagSet{
		kind:           kind,
		field:          field,
		classification: classification,
		limit:          limit,
		allowed:        allowed,
		logger:         logger,
		entries:        make(map[string]*tagEntry),
		touched:        make(map[string]Tag),
		original:       make(map[string]Tag),
	}
}

func (s *TagSet) Kind() string { return s.kind }

func (s *TagSet) Field() string { return s.field }

// Limit returns the maximum number of tags the set holds.
func (s *TagSet) Limit() int { return s.limit }

// Classification returns the key of the allow-list backing this field.
func (s *TagSet) Classification() string { return s.classification }

func (s *TagSet) name() string {
	return s.kind + ":" + s.field
}

// SetValue replaces the whole value and makes it the new baseline.
//
// Codes are resolved in order; the first one that does not resolve aborts with ErrInvalidValue
// and leaves the set untouched. Codes past the limit are not resolved: the first limit codes are
// still committed as the baseline and ErrCapacityExceeded is returned afterwards.
func (s *TagSet) SetValue(ctx context.Context, codes []string) error {
	resolved := make(map[string]Tag, len(codes))
	overflow := false
	for i, code := range codes {
		if i >= s.limit {
			overflow = true
			continue
		}
		tag, err := s.TagFromCode(ctx, code)
		if err != nil {
			return err
		}
		resolved[code] = tag
	}

	s.entries = make(map[string]*tagEntry, len(resolved))
	s.original = make(map[string]Tag, len(resolved))
	for code, tag := range resolved {
		s.entries[code] = &tagEntry{state: statePreserved, tag: tag}
		s.original[code] = tag
	}
	s.touched = make(map[string]Tag)

	if overflow {
		return fmt.Errorf("%d tags given for %s (max %d): %w", len(codes), s.name(), s.limit, ErrCapacityExceeded)
	}
	return nil
}

// Restore makes the stored codes the new baseline without enforcing the limit or the allow-list.
// A code that no longer resolves is kept with a bare record and logged, so callers can still remove it.
// Only lookup failures other than ErrInvalidValue abort.
func (s *TagSet) Restore(ctx context.Context, codes []string) error {
	resolved := make(map[string]Tag, len(codes))
	for _, code := range codes {
		tag, err := s.TagFromCode(ctx, code)
		if err != nil {
			if !errors.Is(err, ErrInvalidValue) {
				return err
			}
			s.logger.WarnContext(ctx, "stored tag not allowed", "field", s.name(), "code", code)
			tag = Tag{Classification: s.classification, Code: code}
		}
		resolved[code] = tag
	}
	if len(resolved) > s.limit {
		s.logger.WarnContext(ctx, "stored tags over limit", "field", s.name(), "count", len(resolved), "limit", s.limit)
	}

	s.entries = make(map[string]*tagEntry, len(resolved))
	s.original = make(map[string]Tag, len(resolved))
	for code, tag := range resolved {
		s.entries[code] = &tagEntry{state: statePreserved, tag: tag}
		s.original[code] = tag
	}
	s.touched = make(map[string]Tag)
	return nil
}

// Count returns the number of tags currently in the set.
func (s *TagSet) Count() int {
	n := 0
	for _, e := range s.entries {
		if e.state != stateRemoved {
			n++
		}
	}
	return n
}

// Value returns the current codes in ascending order.
func (s *TagSet) Value() []string {
	codes := make([]string, 0, len(s.entries))
	for code, e := range s.entries {
		if e.state != stateRemoved {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Tags returns the current tag records ordered by code.
func (s *TagSet) Tags() []Tag {
	return s.tagsIn(statePreserved, stateAdded)
}

// Labels returns the labels of the current tags ordered by code.
// A tag without a label is logged and left out.
func (s *TagSet) Labels() []CodeLabel {
	tags := s.Tags()
	labels := make([]CodeLabel, 0, len(tags))
	for _, tag := range tags {
		if tag.Label == "" {
			s.logger.Error("tag label lookup failed", "field", s.name(), "code", tag.Code)
			continue
		}
		labels = append(labels, CodeLabel{Code: tag.Code, Label: tag.Label})
	}
	return labels
}

// AddTag adds code to the set. Adding a current member is a no-op.
// A code removed since the baseline is restored; any other code must resolve against the allow-list.
func (s *TagSet) AddTag(ctx context.Context, code string) error {
	e, known := s.entries[code]
	if known && e.state != stateRemoved {
		return nil
	}
	if s.Count() >= s.limit {
		return fmt.Errorf("add %q to %s (max %d): %w", code, s.name(), s.limit, ErrCapacityExceeded)
	}
	if known {
		// already in touched since the removal
		e.state = statePreserved
		return nil
	}
	tag, err := s.TagFromCode(ctx, code)
	if err != nil {
		return err
	}
	s.entries[code] = &tagEntry{state: stateAdded, tag: tag}
	s.touched[code] = tag
	return nil
}

// RemoveTag removes code from the set. Removing a code that is not a member is a no-op.
func (s *TagSet) RemoveTag(code string) {
	e, ok := s.entries[code]
	if !ok {
		return
	}
	switch e.state {
	case stateRemoved:
		return
	case stateAdded:
		delete(s.entries, code)
	case statePreserved:
		e.state = stateRemoved
	}
	s.touched[code] = e.tag
}

// GenerateDiffFromTags edits the set until its value is codes.
// All removals happen before any addition so that swapping tags on a full set succeeds.
func (s *TagSet) GenerateDiffFromTags(ctx context.Context, codes []string) error {
	want := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		want[code] = struct{}{}
	}
	for _, code := range s.Value() {
		if _, ok := want[code]; !ok {
			s.RemoveTag(code)
		}
	}
	for _, code := range codes {
		if err := s.AddTag(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDelta removes d.Removed then adds d.Added.
func (s *TagSet) ApplyDelta(ctx context.Context, d Delta) error {
	for _, code := range d.Removed {
		s.RemoveTag(code)
	}
	for _, code := range d.Added {
		if err := s.AddTag(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

// Delta returns what must change to turn the value of s into the value of other:
// Added holds the codes only other has, Removed the codes only s has.
// The edit history of either set plays no part.
func (s *TagSet) Delta(ctx context.Context, other *TagSet) (Delta, error) {
	scratch, err := s.replay(ctx, other)
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		Added:   scratch.codesIn(stateAdded),
		Removed: scratch.codesIn(stateRemoved),
	}, nil
}

// DeltaTags is Delta returning tag records.
func (s *TagSet) DeltaTags(ctx context.Context, other *TagSet) (DeltaTags, error) {
	scratch, err := s.replay(ctx, other)
	if err != nil {
		return DeltaTags{}, err
	}
	return DeltaTags{
		Added:   scratch.tagsIn(stateAdded),
		Removed: scratch.tagsIn(stateRemoved),
	}, nil
}

// replay seeds a scratch set with the value of s, removes all of it and adds the value of other.
// Codes common to both come back through the removed -> preserved path and end up in neither bucket.
func (s *TagSet) replay(ctx context.Context, other *TagSet) (*TagSet, error) {
	if other == nil {
		return nil, fmt.Errorf("delta %s: no target set: %w", s.name(), ErrInvalidValue)
	}
	current := s.Tags()
	target := other.Value()

	scratch := newTagSet(s.allowed, s.logger, s.kind, s.field, s.classification, max(s.limit, len(current)+len(target)))
	for _, tag := range current {
		scratch.entries[tag.Code] = &tagEntry{state: statePreserved, tag: tag}
		scratch.original[tag.Code] = tag
	}
	for _, tag := range current {
		scratch.RemoveTag(tag.Code)
	}
	for _, code := range target {
		if err := scratch.AddTag(ctx, code); err != nil {
			return nil, fmt.Errorf("delta %s: %w", s.name(), err)
		}
	}
	return scratch, nil
}

// Pending returns the changes since the baseline: added and removed codes, sorted.
func (s *TagSet) Pending() Delta {
	return Delta{
		Added:   s.codesIn(stateAdded),
		Removed: s.codesIn(stateRemoved),
	}
}

// Baseline returns the codes recorded by the last SetValue, sorted.
func (s *TagSet) Baseline() []string {
	codes := make([]string, 0, len(s.original))
	for code := range s.original {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Changed reports whether the current value differs from the baseline.
func (s *TagSet) Changed() bool {
	return strings.Join(s.Value(), " ") != strings.Join(s.Baseline(), " ")
}

// ModifiedTags returns every code touched by AddTag or RemoveTag since the baseline, sorted.
// A code whose changes cancelled out is still reported.
func (s *TagSet) ModifiedTags() []string {
	codes := make([]string, 0, len(s.touched))
	for code := range s.touched {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsValidTag reports whether code is currently in the field's allow-list.
// Lookup failures count as invalid.
func (s *TagSet) IsValidTag(ctx context.Context, code string) bool {
	_, err := s.TagFromCode(ctx, code)
	return err == nil
}

// TagFromCode returns the allowed tag with the given code.
func (s *TagSet) TagFromCode(ctx context.Context, code string) (Tag, error) {
	allowed, err := s.allowed.ListAllowed(ctx, s.kind, s.field)
	if err != nil {
		return Tag{}, fmt.Errorf("list allowed tags for %s: %w", s.name(), err)
	}
	for _, tag := range allowed {
		if tag.Code == code {
			return tag, nil
		}
	}
	return Tag{}, fmt.Errorf("%q is not a valid tag for %s: %w", code, s.name(), ErrInvalidValue)
}

// TagFromLabel returns the code of the allowed tag whose label is label.
func (s *TagSet) TagFromLabel(ctx context.Context, label string) (string, error) {
	allowed, err := s.allowed.ListAllowed(ctx, s.kind, s.field)
	if err != nil {
		return "", fmt.Errorf("list allowed tags for %s: %w", s.name(), err)
	}
	for _, tag := range allowed {
		if tag.Label == label {
			return tag.Code, nil
		}
	}
	return "", fmt.Errorf("label %q is not a valid tag for %s: %w", label, s.name(), ErrInvalidValue)
}

// Equals reports whether both sets draw from the same allow-list and hold the same codes.
func (s *TagSet) Equals(other *TagSet) bool {
	if other == nil || s.classification != other.classification {
		return false
	}
	return strings.Join(s.Value(), " ") == strings.Join(other.Value(), " ")
}

// String renders the codes space separated. An empty set renders as a single space.
func (s *TagSet) String() string {
	codes := s.Value()
	if len(codes) == 0 {
		return " "
	}
	return strings.Join(codes, " ")
}

func (s *TagSet) codesIn(state tagState) []string {
	codes := make([]string, 0)
	for code, e := range s.entries {
		if e.state == state {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (s *TagSet) tagsIn(states ...tagState) []Tag {
	tags := make([]Tag, 0, len(s.entries))
	for _, e := range s.entries {
		for _, st := range states {
			if e.state == st {
				tags = append(tags, e.tag)
				break
			}
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Code < tags[j].Code })
	return tags
}
