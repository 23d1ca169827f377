package order

import "fmt"

// RefKind discriminates the two ways a request may reference a product.
type RefKind uint8

const (
	// RefNone is the zero value: no reference was supplied.
	RefNone RefKind = iota
	// RefSlug references a product by its catalog slug.
	RefSlug
	// RefID references a product by its numeric ID.
	RefID
)

// Ref is a tagged product reference: either a slug or a numeric ID, never
// both. The zero Ref references nothing.
type Ref struct {
	kind RefKind
	slug string
	id   int64
}

// BySlug builds a Ref that resolves through the product's slug.
func BySlug(slug string) Ref { return Ref{kind: RefSlug, slug: slug} }

// ByID builds a Ref that resolves through the product's numeric ID.
func ByID(id int64) Ref { return Ref{kind: RefID, id: id} }

// Kind reports which variant this Ref holds.
func (r Ref) Kind() RefKind { return r.kind }

// Slug returns the slug for RefSlug refs, "" otherwise.
func (r Ref) Slug() string { return r.slug }

// ID returns the product ID for RefID refs, 0 otherwise.
func (r Ref) ID() int64 { return r.id }

// IsZero reports whether no reference was supplied.
func (r Ref) IsZero() bool { return r.kind == RefNone }

// String renders the reference for error messages.
func (r Ref) String() string {
	switch r.kind {
	case RefSlug:
		return fmt.Sprintf("slug %q", r.slug)
	case RefID:
		return fmt.Sprintf("id %d", r.id)
	default:
		return "no reference"
	}
}
