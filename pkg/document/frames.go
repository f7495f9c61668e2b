package document

import (
	"github.com/beevik/etree"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// AnyFrame matches frames of every type.
const AnyFrame = "any"

// Frame types the dependency extractor looks at.
const (
	FrameImage   = "image"
	FrameBarcode = "barcode"
	FrameText    = "text"
)

// DefaultFontName is the built-in font every document lists. It has no real
// backing resource on any environment, so it is never transferred.
const DefaultFontName = "Arial Regular"

// Frame is a content placeholder on a page.
type Frame struct {
	el *etree.Element

	// Nested is true for frames found inside another frame's inline frames.
	Nested bool
}

// Type returns the frame's type attribute, e.g. "image" or "barcode".
func (f Frame) Type() string {
	return f.el.SelectAttrValue("type", "")
}

// Attr returns the value of the named attribute, or "" when absent.
func (f Frame) Attr(name string) string {
	return f.el.SelectAttrValue(name, "")
}

// FontRef identifies a font the document uses.
type FontRef struct {
	ID     string
	Name   string
	Family string
	Style  string
}

// ImageRef is an image frame's content reference. Kind is either
// resource.Assets or resource.DynamicAssetProviders, never both.
type ImageRef struct {
	Kind resource.Kind
	ID   string
	Name string
	Path string
}

// Frames returns the frames of the given type (or AnyFrame) on all pages,
// including frames nested one level deep inside another frame's inline
// frames. A nested frame is listed before the frame that contains it.
func (d *Document) Frames(frameType string) []Frame {
	pages := d.root.FindElement(".//pages")
	if pages == nil {
		return nil
	}

	match := func(el *etree.Element) bool {
		return frameType == AnyFrame || el.SelectAttrValue("type", "") == frameType
	}

	var frames []Frame
	for _, container := range pages.FindElements(".//frames") {
		if insideInlineFrames(container, pages) {
			continue
		}

		for _, item := range container.SelectElements("item") {
			if inline := item.FindElement(".//inlineFrames"); inline != nil {
				for _, inlineItem := range inline.SelectElements("item") {
					nested := inlineItem.FindElement(".//frame")
					if nested != nil && match(nested) {
						frames = append(frames, Frame{el: nested, Nested: true})
					}
				}
			}

			if match(item) {
				frames = append(frames, Frame{el: item})
			}
		}
	}

	return frames
}

// insideInlineFrames reports whether el sits below an inlineFrames container,
// looking no further up than stop.
func insideInlineFrames(el, stop *etree.Element) bool {
	for p := el.Parent(); p != nil && p != stop; p = p.Parent() {
		if p.Tag == "inlineFrames" {
			return true
		}
	}
	return false
}

// Fonts returns every font declared by the document, in document order,
// including the built-in default font.
func (d *Document) Fonts() []FontRef {
	container := d.root.FindElement(".//" + fontsTag)
	if container == nil {
		return nil
	}

	var fonts []FontRef
	for _, el := range container.ChildElements() {
		fonts = append(fonts, FontRef{
			ID:     el.SelectAttrValue("id", ""),
			Name:   el.SelectAttrValue("name", ""),
			Family: el.SelectAttrValue("family", ""),
			Style:  el.SelectAttrValue("style", ""),
		})
	}
	return fonts
}

// DependentFonts returns Fonts without the built-in default font.
func (d *Document) DependentFonts() []FontRef {
	var fonts []FontRef
	for _, f := range d.Fonts() {
		if f.Name == DefaultFontName {
			continue
		}
		fonts = append(fonts, f)
	}
	return fonts
}

// ImagesAndProviders classifies every image frame that has content. A frame
// naming a dynamic asset provider references that provider; any other frame
// references a static asset.
func (d *Document) ImagesAndProviders() []ImageRef {
	var refs []ImageRef
	for _, f := range d.Frames(FrameImage) {
		if f.Attr("hasContent") != "true" {
			continue
		}

		if providerID := f.Attr("dynamicAssetProviderID"); len(providerID) > 1 {
			refs = append(refs, ImageRef{
				Kind: resource.DynamicAssetProviders,
				ID:   providerID,
			})
			continue
		}

		refs = append(refs, ImageRef{
			Kind: resource.Assets,
			ID:   f.Attr("externalID"),
			Name: f.Attr("externalName"),
			Path: f.Attr("path"),
		})
	}
	return refs
}

// BarcodeTypeIDs returns the barcode type of every barcode frame.
func (d *Document) BarcodeTypeIDs() []string {
	var ids []string
	for _, f := range d.Frames(FrameBarcode) {
		ids = append(ids, f.Attr("barcodeTypeID"))
	}
	return ids
}
