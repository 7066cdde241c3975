// Package store keeps named grammar documents.
//
// Two backends implement [Store]:
//   - [FileStore]: one JSON file per document in a directory, for the CLI
//   - [MongoStore]: a MongoDB collection, for shared deployments
//
// Documents hold the grammar as JSON, the encoding [grammar.Grammar.Encode]
// produces, so a document round-trips through any backend unchanged:
//
//	doc, err := store.NewDocument("city", g)
//	if err != nil {
//	    return err
//	}
//	if err := st.Put(ctx, doc); err != nil {
//	    return err
//	}
//
//	doc, err = st.Get(ctx, "city")
//	if errors.Is(err, store.ErrNotFound) {
//	    // no such grammar
//	}
//	g, err := doc.Grammar()
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = stderrors.New("grammar document not found")

// Document is a stored grammar.
type Document struct {
	Name      string          `json:"name" bson:"_id"`
	Data      json.RawMessage `json:"data" bson:"data"`
	Views     int             `json:"views" bson:"views"`
	Knots     int             `json:"knots" bson:"knots"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// Summary describes a document without its data.
type Summary struct {
	Name      string    `json:"name" bson:"_id"`
	Views     int       `json:"views" bson:"views"`
	Knots     int       `json:"knots" bson:"knots"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store persists grammar documents by name.
type Store interface {
	// Put creates or replaces a document. CreatedAt is kept on replace.
	Put(ctx context.Context, doc *Document) error
	// Get returns the named document or an error wrapping ErrNotFound.
	Get(ctx context.Context, name string) (*Document, error)
	// List returns every document, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, name string) error
	Close() error
}

// NewDocument encodes g as a document named name.
func NewDocument(name string, g *grammar.Grammar) (*Document, error) {
	if err := errors.ValidateIdentifier("grammar", name); err != nil {
		return nil, err
	}
	data, err := g.Encode()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGrammar, err, "encode grammar %s", name)
	}
	return &Document{Name: name, Data: data, Views: len(g.Views), Knots: len(g.Knots)}, nil
}

// Grammar decodes and validates the stored grammar.
func (d *Document) Grammar() (*grammar.Grammar, error) {
	return grammar.Parse(d.Data, grammar.FormatJSON)
}

// Summary returns the document's summary.
func (d *Document) Summary() Summary {
	return Summary{Name: d.Name, Views: d.Views, Knots: d.Knots, UpdatedAt: d.UpdatedAt}
}

// stamp sets the timestamps of a document about to be written.
func stamp(doc *Document, existing *Document, now time.Time) {
	doc.UpdatedAt = now
	switch {
	case existing != nil:
		doc.CreatedAt = existing.CreatedAt
	case doc.CreatedAt.IsZero():
		doc.CreatedAt = now
	}
}
