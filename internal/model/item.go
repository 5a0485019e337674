package model

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	mixerrs "feedmixer/internal/errors"
)

// Well-known item field names, as used by rule conditions and transformations.
const (
	FieldID            = "id"
	FieldTitle         = "title"
	FieldContent       = "content"
	FieldLink          = "link"
	FieldPublishedDate = "published_date"
	FieldAuthor        = "author"
	FieldFeedSourceID  = "feed_source_id"
	FieldGUID          = "guid"
	FieldTags          = "tags"
)

// FeedItem is a single entry of a feed.
//
// Well-known attributes are plain fields. Tags behave like a set and any other
// attribute lives in an extension map; both are reachable through Field.
// Copies made with WithField/WithoutField never share mutable state with the
// original.
type FeedItem struct {
	ID            string
	Title         string
	Content       string
	Link          string
	PublishedDate time.Time
	Author        string
	FeedSourceID  string
	GUID          string

	tags  []string
	extra map[string]any
}

// NewFeedItem returns an item with a generated id when id is empty.
func NewFeedItem(id, title, content, link string, published time.Time) FeedItem {
	if id == "" {
		id = uuid.NewString()
	}
	return FeedItem{
		ID:            id,
		Title:         title,
		Content:       content,
		Link:          link,
		PublishedDate: published,
	}
}

// Equal compares identity only.
func (it FeedItem) Equal(other FeedItem) bool {
	return it.ID == other.ID
}

// Tags returns a copy of the item's tags.
func (it FeedItem) Tags() []string {
	return slices.Clone(it.tags)
}

// HasTag reports whether tag is present.
func (it FeedItem) HasTag(tag string) bool {
	return slices.Contains(it.tags, tag)
}

// AddTag adds tag unless it is already present.
func (it *FeedItem) AddTag(tag string) {
	if slices.Contains(it.tags, tag) {
		return
	}
	it.tags = append(slices.Clip(it.tags), tag)
}

// RemoveTag removes tag if present.
func (it *FeedItem) RemoveTag(tag string) {
	i := slices.Index(it.tags, tag)
	if i < 0 {
		return
	}
	it.tags = slices.Delete(slices.Clone(it.tags), i, i+1)
}

// SetExtension stores a custom attribute. Reserved names are rejected.
func (it *FeedItem) SetExtension(key string, v any) error {
	if isWellKnown(key) {
		return mixerrs.E(fmt.Sprintf("%q is a well-known field", key), mixerrs.KindValidation)
	}
	extra := maps.Clone(it.extra)
	if extra == nil {
		extra = make(map[string]any)
	}
	extra[key] = v
	it.extra = extra
	return nil
}

// Extensions returns a copy of the custom attributes.
func (it FeedItem) Extensions() map[string]any {
	return maps.Clone(it.extra)
}

// Field looks up an attribute by name. The boolean is false when the
// attribute is absent.
func (it FeedItem) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return it.ID, it.ID != ""
	case FieldTitle:
		return it.Title, it.Title != ""
	case FieldContent:
		return it.Content, it.Content != ""
	case FieldLink:
		return it.Link, it.Link != ""
	case FieldPublishedDate:
		return it.PublishedDate, !it.PublishedDate.IsZero()
	case FieldAuthor:
		return it.Author, it.Author != ""
	case FieldFeedSourceID:
		return it.FeedSourceID, it.FeedSourceID != ""
	case FieldGUID:
		return it.GUID, it.GUID != ""
	case FieldTags:
		return it.Tags(), len(it.tags) > 0
	}
	v, ok := it.extra[name]
	return v, ok
}

// WithField returns a copy of the item with the attribute set to v.
func (it FeedItem) WithField(name string, v any) (FeedItem, error) {
	out := it.clone()

	switch name {
	case FieldID:
		return it, mixerrs.E("field id is read-only", mixerrs.KindValidation, mixerrs.Detail{Field: name, Error: "read-only"})
	case FieldTitle, FieldContent, FieldLink, FieldAuthor, FieldFeedSourceID, FieldGUID:
		s, ok := v.(string)
		if !ok {
			return it, typeErr(name, "a string", v)
		}
		*out.stringField(name) = s
	case FieldPublishedDate:
		switch t := v.(type) {
		case time.Time:
			out.PublishedDate = t
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return it, typeErr(name, "an RFC 3339 timestamp", v)
			}
			out.PublishedDate = parsed
		default:
			return it, typeErr(name, "a timestamp", v)
		}
	case FieldTags:
		out.tags = nil
		switch t := v.(type) {
		case string:
			out.AddTag(t)
		case []string:
			for _, tag := range t {
				out.AddTag(tag)
			}
		case []any:
			for _, e := range t {
				tag, ok := e.(string)
				if !ok {
					return it, typeErr(name, "a list of strings", v)
				}
				out.AddTag(tag)
			}
		default:
			return it, typeErr(name, "a string or list of strings", v)
		}
	default:
		if out.extra == nil {
			out.extra = make(map[string]any)
		}
		out.extra[name] = v
	}

	return out, nil
}

// WithoutField returns a copy of the item with the attribute removed.
func (it FeedItem) WithoutField(name string) (FeedItem, error) {
	out := it.clone()

	switch name {
	case FieldID:
		return it, mixerrs.E("field id is read-only", mixerrs.KindValidation, mixerrs.Detail{Field: name, Error: "read-only"})
	case FieldTitle, FieldContent, FieldLink, FieldAuthor, FieldFeedSourceID, FieldGUID:
		*out.stringField(name) = ""
	case FieldPublishedDate:
		out.PublishedDate = time.Time{}
	case FieldTags:
		out.tags = nil
	default:
		delete(out.extra, name)
	}

	return out, nil
}

// Fields returns every present attribute keyed by field name.
func (it FeedItem) Fields() map[string]any {
	out := make(map[string]any, 9+len(it.extra))
	for _, name := range []string{
		FieldID, FieldTitle, FieldContent, FieldLink, FieldPublishedDate,
		FieldAuthor, FieldFeedSourceID, FieldGUID, FieldTags,
	} {
		if v, ok := it.Field(name); ok {
			out[name] = v
		}
	}
	for k, v := range it.extra {
		out[k] = v
	}
	return out
}

func (it FeedItem) clone() FeedItem {
	out := it
	out.tags = slices.Clone(it.tags)
	out.extra = maps.Clone(it.extra)
	return out
}

func (it *FeedItem) stringField(name string) *string {
	switch name {
	case FieldTitle:
		return &it.Title
	case FieldContent:
		return &it.Content
	case FieldLink:
		return &it.Link
	case FieldAuthor:
		return &it.Author
	case FieldFeedSourceID:
		return &it.FeedSourceID
	case FieldGUID:
		return &it.GUID
	}
	panic("model: not a string field: " + name)
}

func isWellKnown(name string) bool {
	switch name {
	case FieldID, FieldTitle, FieldContent, FieldLink, FieldPublishedDate,
		FieldAuthor, FieldFeedSourceID, FieldGUID, FieldTags:
		return true
	}
	return false
}

func typeErr(field, want string, got any) error {
	return mixerrs.E(
		fmt.Sprintf("field %s expects %s, got %T", field, want, got),
		mixerrs.KindType,
		mixerrs.Detail{Field: "field", Error: field},
	)
}
