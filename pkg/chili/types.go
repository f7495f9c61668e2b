package chili

import (
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

type apiKeyRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type apiKeyResponse struct {
	Succeeded bool   `json:"succeeded"`
	Key       string `json:"key"`
	ErrorMsg  string `json:"errorMessage"`
}

type definitionResponse struct {
	Name         string  `json:"name"`
	ID           string  `json:"id"`
	RelativePath *string `json:"relativePath"`
	FileInfo     struct {
		FileSize string `json:"fileSize"`
	} `json:"fileInfo"`
}

func (r definitionResponse) definition() resource.Definition {
	return resource.Definition{
		Name:         r.Name,
		ID:           r.ID,
		RelativePath: r.RelativePath,
		FileSize:     r.FileInfo.FileSize,
	}
}

// nextItemIDResponse reports finished=false when the identifier is already
// taken. The server sends it as a string or a boolean.
type nextItemIDResponse struct {
	Finished *bool `json:"finished"`
}

type itemBody struct {
	XML      string `json:"xml"`
	FileData string `json:"fileData,omitempty"`
}

// Item is one entry of a resource listing.
type Item struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	IsFolder     bool   `json:"isFolder"`
}
