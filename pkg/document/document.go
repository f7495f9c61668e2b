// Package document parses a publishing document's XML content model and
// answers the questions the transfer engine asks about it: which fonts,
// images, dynamic asset providers, barcode types and data source the
// document needs before it can live on another environment.
//
// The model keeps the full XML tree, so anything it does not interpret is
// written back untouched by Serialize.
package document

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

const (
	rootTag       = "document"
	dataSourceTag = "dataSource"
	fontsTag      = "fonts"
)

// Placeholder is the empty document body used to reserve a document on the
// destination before its real content is saved.
const Placeholder = "<document />"

// ErrNoDataSource is returned when replacing the data source of a document
// that has none.
var ErrNoDataSource = errors.New("document has no data source")

// ParseError reports XML that cannot be used as a document. It is terminal:
// retrying the same payload cannot succeed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing document XML: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// newTree returns an empty tree that escapes carriage returns in text and
// tabs and newlines in attribute values, so a read of its output yields the
// same characters.
func newTree() *etree.Document {
	tree := etree.NewDocument()
	tree.WriteSettings.CanonicalText = true
	tree.WriteSettings.CanonicalAttrVal = true
	return tree
}

// Document is a parsed document content model.
type Document struct {
	tree *etree.Document
	root *etree.Element
}

// Parse builds a Document from raw XML. Malformed XML or XML whose root is
// not a document element yields a *ParseError and no Document.
func Parse(xml string) (*Document, error) {
	tree := newTree()
	if err := tree.ReadFromString(xml); err != nil {
		return nil, &ParseError{Err: err}
	}

	root := tree.Root()
	if root == nil {
		return nil, &ParseError{Err: errors.New("no root element")}
	}
	if root.Tag != rootTag {
		return nil, &ParseError{Err: fmt.Errorf("root element is <%s>, expected <%s>", root.Tag, rootTag)}
	}

	return &Document{tree: tree, root: root}, nil
}

// Name returns the document's name attribute.
func (d *Document) Name() string {
	return d.root.SelectAttrValue("name", "")
}

// ID returns the document's id attribute.
func (d *Document) ID() string {
	return d.root.SelectAttrValue("id", "")
}

// DataSource returns the embedded data source element, or nil.
func (d *Document) DataSource() *etree.Element {
	return d.root.FindElement(".//" + dataSourceTag)
}

// DataSourceID returns the identifier of the embedded data source. The second
// result is false when there is no data source or its identifier is empty.
func (d *Document) DataSourceID() (string, bool) {
	ds := d.DataSource()
	if ds == nil {
		return "", false
	}
	id := ds.SelectAttrValue("dataSourceID", "")
	return id, id != ""
}

// DataSourceXML serializes the embedded data source subtree.
func (d *Document) DataSourceXML() (string, error) {
	ds := d.DataSource()
	if ds == nil {
		return "", ErrNoDataSource
	}

	frag := newTree()
	frag.SetRoot(ds.Copy())
	return frag.WriteToString()
}

// ReplaceDataSource swaps the embedded data source subtree for el, keeping
// its position among its siblings.
func (d *Document) ReplaceDataSource(el *etree.Element) error {
	old := d.DataSource()
	if old == nil {
		return ErrNoDataSource
	}
	if el == nil {
		return errors.New("replacement data source is nil")
	}

	parent := old.Parent()
	index := old.Index()
	parent.RemoveChildAt(index)
	parent.InsertChildAt(index, el)
	return nil
}

// ReplaceDataSourceXML parses xml and substitutes it for the embedded data
// source. The XML may be the data source element itself or any element that
// contains one.
func (d *Document) ReplaceDataSourceXML(xml string) error {
	frag := newTree()
	if err := frag.ReadFromString(xml); err != nil {
		return &ParseError{Err: err}
	}

	el := frag.Root()
	if el == nil {
		return &ParseError{Err: errors.New("data source XML has no root element")}
	}
	if el.Tag != dataSourceTag {
		el = el.FindElement(".//" + dataSourceTag)
		if el == nil {
			return &ParseError{Err: errors.New("data source XML has no dataSource element")}
		}
	}

	el = el.Copy()
	if ds := d.DataSource(); ds != nil && el.SelectAttr("dataSourceID") == nil {
		// Keep the reference the document was built against.
		el.CreateAttr("dataSourceID", ds.SelectAttrValue("dataSourceID", ""))
	}
	return d.ReplaceDataSource(el)
}

// Serialize writes the document back to XML. The output is deterministic, so
// serializing the same logical content twice gives the same string.
func (d *Document) Serialize() (string, error) {
	return d.tree.WriteToString()
}

func (d *Document) String() string {
	s, err := d.Serialize()
	if err != nil {
		return ""
	}
	return s
}
