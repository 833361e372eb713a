// Package registry maps reaction target tags to the models they identify.
//
// The set of kinds is closed: it is fixed when a Registry is built and never
// mutated afterwards, so a *Registry is safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
)

// Kind is the type tag of a reaction target.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// ErrUnknownType is returned for tags or entities outside the registry.
var ErrUnknownType = errors.New("unknown target type")

// Entry binds a Kind to the gorm model backing it.
type Entry struct {
	Kind  Kind
	Model interface{}

	typ reflect.Type
}

// Exists reports whether a row with the given id exists for this kind.
func (e Entry) Exists(tx *gorm.DB, id uint) (bool, error) {
	var n int64
	if err := tx.Model(reflect.New(e.typ).Interface()).Where("id = ?", id).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Fetch loads the row with the given id. It returns gorm.ErrRecordNotFound when absent.
func (e Entry) Fetch(tx *gorm.DB, id uint) (interface{}, error) {
	dest := reflect.New(e.typ).Interface()
	if err := tx.First(dest, id).Error; err != nil {
		return nil, err
	}
	return dest, nil
}

// Registry resolves tags to entries and entities back to tags.
type Registry struct {
	byKind map[Kind]Entry
	byType map[reflect.Type]Kind
}

// New builds a registry from model prototypes such as &models.Post{}.
// It panics on duplicate kinds or models, which is a programming error.
func New(entries ...Entry) *Registry {
	r := &Registry{
		byKind: make(map[Kind]Entry, len(entries)),
		byType: make(map[reflect.Type]Kind, len(entries)),
	}
	for _, e := range entries {
		e.typ = indirect(reflect.TypeOf(e.Model))
		if _, dup := r.byKind[e.Kind]; dup {
			panic(fmt.Sprintf("registry: duplicate kind %q", e.Kind))
		}
		if _, dup := r.byType[e.typ]; dup {
			panic(fmt.Sprintf("registry: model %s registered twice", e.typ))
		}
		r.byKind[e.Kind] = e
		r.byType[e.typ] = e.Kind
	}
	return r
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry of reactable kinds.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New(
			Entry{Kind: KindPost, Model: &models.Post{}},
			Entry{Kind: KindComment, Model: &models.Comment{}},
		)
	})
	return defaultRegistry
}

// Resolve returns the entry registered for tag.
func (r *Registry) Resolve(tag string) (Entry, error) {
	e, ok := r.byKind[Kind(strings.ToLower(strings.TrimSpace(tag)))]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
	return e, nil
}

// KindOf returns the tag of a registered model value or pointer.
func (r *Registry) KindOf(entity interface{}) (Kind, error) {
	if entity == nil {
		return "", ErrUnknownType
	}
	k, ok := r.byType[indirect(reflect.TypeOf(entity))]
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnknownType, entity)
	}
	return k, nil
}

// Kinds lists the registered kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
