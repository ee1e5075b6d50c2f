package store

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Page is one fixed-size slice of an ordered result set.
type Page[T any] struct {
	Items []T `json:"items"`
	Index int `json:"index"`
	Size  int `json:"size"`
	Count int `json:"count"`
	Pages int `json:"pages"`
}

// HasPrevious reports whether a page precedes this one.
func (p *Page[T]) HasPrevious() bool { return p.Index > 0 }

// HasNext reports whether a page follows this one.
func (p *Page[T]) HasNext() bool { return p.Index < p.Pages-1 }

// PageCount returns ceil(count/size).
func PageCount(count, size int) int {
	if size <= 0 {
		return 0
	}
	pages := count / size
	if count%size != 0 {
		pages++
	}
	return pages
}

// Paginate counts the rows matching q before slicing, then fetches rows
// [index*size, index*size+size). An index past the end yields no items but
// still reports the full count.
func Paginate(ctx context.Context, b Backend, q Query, index, size int) (*Page[Entity], error) {
	if index < 0 || size <= 0 {
		return nil, fmt.Errorf("%w: index=%d size=%d", ErrInvalidPage, index, size)
	}

	count, err := b.Count(ctx, q.Unsliced())
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", q.EntityType, err)
	}

	page := &Page[Entity]{
		Items: []Entity{},
		Index: index,
		Size:  size,
		Count: count,
		Pages: PageCount(count, size),
	}

	// Compare pages rather than offsets so huge indexes cannot overflow.
	if index >= page.Pages {
		return page, nil
	}
	offset := index * size

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := b.Find(ctx, q.Slice(offset, size))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.EntityType, err)
	}
	if items != nil {
		page.Items = items
	}
	return page, nil
}

// PageRequest is a page index and size as received from callers.
// Validate it before handing it to a repository to bound the size.
type PageRequest struct {
	Index int `json:"index" validate:"gte=0"`
	Size  int `json:"size" validate:"gte=1,lte=1000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request bounds.
func (r PageRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	return nil
}
