package document

import (
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// DependencyOrder is the order in which a document's dependencies must exist
// on the destination before the document itself is written.
var DependencyOrder = []resource.Kind{
	resource.DataSources,
	resource.Fonts,
	resource.Assets,
	resource.DynamicAssetProviders,
	resource.BarcodeTypes,
}

// Dependencies lists the resources a document references by identifier.
// Identifiers are unique within each list and never empty.
type Dependencies struct {
	DataSource string
	Fonts      []string
	Assets     []string
	Providers  []string
	Barcodes   []string
}

// Group is the set of identifiers of one kind a document depends on.
type Group struct {
	Kind resource.Kind
	IDs  []string
}

// Dependencies extracts the resources d needs on the destination.
func (d *Document) Dependencies() Dependencies {
	var deps Dependencies

	if id, ok := d.DataSourceID(); ok {
		deps.DataSource = id
	}

	for _, f := range d.DependentFonts() {
		deps.Fonts = appendUnique(deps.Fonts, f.ID)
	}

	for _, img := range d.ImagesAndProviders() {
		switch img.Kind {
		case resource.DynamicAssetProviders:
			deps.Providers = appendUnique(deps.Providers, img.ID)
		case resource.Assets:
			deps.Assets = appendUnique(deps.Assets, img.ID)
		}
	}

	for _, id := range d.BarcodeTypeIDs() {
		deps.Barcodes = appendUnique(deps.Barcodes, id)
	}

	return deps
}

// Groups returns the non-empty dependency groups in DependencyOrder.
func (d Dependencies) Groups() []Group {
	var groups []Group
	for _, kind := range DependencyOrder {
		ids := d.IDs(kind)
		if len(ids) == 0 {
			continue
		}
		groups = append(groups, Group{Kind: kind, IDs: ids})
	}
	return groups
}

// IDs returns the identifiers of the given kind.
func (d Dependencies) IDs(kind resource.Kind) []string {
	switch kind {
	case resource.DataSources:
		if d.DataSource == "" {
			return nil
		}
		return []string{d.DataSource}
	case resource.Fonts:
		return d.Fonts
	case resource.Assets:
		return d.Assets
	case resource.DynamicAssetProviders:
		return d.Providers
	case resource.BarcodeTypes:
		return d.Barcodes
	}
	return nil
}

// Units flattens the dependency groups into transfer units, in order.
func (d Dependencies) Units() []resource.Unit {
	var units []resource.Unit
	for _, g := range d.Groups() {
		for _, id := range g.IDs {
			units = append(units, resource.Unit{Kind: g.Kind, ID: id})
		}
	}
	return units
}

// Len returns the total number of dependencies.
func (d Dependencies) Len() int {
	return len(d.Units())
}

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
