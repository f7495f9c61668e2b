// Package resource describes the content objects a publishing environment
// manages and how an item's location maps from one environment to another.
package resource

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// Kind is a category of content object managed by the platform.
type Kind string

const (
	Users                        Kind = "Users"
	UserGroups                   Kind = "UserGroups"
	DataSources                  Kind = "DataSources"
	DynamicAssetProviders        Kind = "DynamicAssetProviders"
	XinetSettings                Kind = "XinetSettings"
	SwitchServerSettings         Kind = "SwitchServerSettings"
	PdfExportSettings            Kind = "PdfExportSettings"
	HtmlExportSettings           Kind = "HtmlExportSettings"
	IdmlExportSettings           Kind = "IdmlExportSettings"
	OdfExportSettings            Kind = "OdfExportSettings"
	ImageConversionProfiles      Kind = "ImageConversionProfiles"
	DocumentTemplates            Kind = "DocumentTemplates"
	ImageTransformations         Kind = "ImageTransformations"
	BarcodeTypes                 Kind = "BarcodeTypes"
	OdtImportSettings            Kind = "OdtImportSettings"
	StructuredTextImportSettings Kind = "StructuredTextImportSettings"
	DocumentConstraints          Kind = "DocumentConstraints"
	ThreeDModels                 Kind = "ThreeDModels"
	FoldingSettings              Kind = "FoldingSettings"
	Documents                    Kind = "Documents"
	Fonts                        Kind = "Fonts"
	WorkSpaces                   Kind = "WorkSpaces"
	ViewPreferences              Kind = "ViewPreferences"
	Assets                       Kind = "Assets"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	Users, UserGroups, DataSources, DynamicAssetProviders, XinetSettings,
	SwitchServerSettings, PdfExportSettings, HtmlExportSettings, IdmlExportSettings,
	OdfExportSettings, ImageConversionProfiles, DocumentTemplates, ImageTransformations,
	BarcodeTypes, OdtImportSettings, StructuredTextImportSettings, DocumentConstraints,
	ThreeDModels, FoldingSettings, Documents, Fonts, WorkSpaces, ViewPreferences, Assets,
}

// Class groups kinds by how their payload is replicated.
type Class int

const (
	// ClassDefinition kinds are XML settings resources added in a single call.
	ClassDefinition Class = iota
	// ClassBinary kinds carry a file payload whose size can be verified.
	ClassBinary
	// ClassDocument is the document kind, which has dependencies.
	ClassDocument
)

func (c Class) String() string {
	switch c {
	case ClassBinary:
		return "binary"
	case ClassDocument:
		return "document"
	default:
		return "definition"
	}
}

// Class returns the replication class of the kind.
func (k Kind) Class() Class {
	switch k {
	case Assets, Fonts:
		return ClassBinary
	case Documents:
		return ClassDocument
	default:
		return ClassDefinition
	}
}

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind resolves a kind name written in any common casing, e.g.
// "Documents", "documents", "dynamic-asset-providers" or "barcode_types".
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("resource kind is empty")
	}

	camel := strcase.ToCamel(s)
	for _, k := range Kinds {
		if strings.EqualFold(camel, string(k)) {
			return k, nil
		}
	}

	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Unit is a single item of a given kind, the thing the transfer engine moves.
type Unit struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	ID   string `json:"id" yaml:"id"`
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s", u.Kind, u.ID)
}
