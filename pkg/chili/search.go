package chili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// PageSize is the number of items requested per listing page.
const PageSize = 100

// SearchItems lists the items of kind below folder, following pages until a
// short one. Folder entries are left out.
func (c *Client) SearchItems(ctx context.Context, kind resource.Kind, folder string, includeSubDirs bool) ([]Item, error) {
	var items []Item

	for page := 1; ; page++ {
		query := url.Values{
			"parentFolderPath":      {folder},
			"includeSubDirectories": {strconv.FormatBool(includeSubDirs)},
			"name":                  {""},
			"pageSize":              {strconv.Itoa(PageSize)},
			"pageNum":               {strconv.Itoa(page)},
		}

		body, err := c.getRaw(ctx, "search items", resourcePath(kind, "items", "search", "pagedwithsorting"), query)
		if err != nil {
			return items, err
		}

		pageItems, err := decodeListing(body)
		if err != nil {
			return items, fmt.Errorf("error decoding page %d of %s in %q: %w", page, kind, folder, err)
		}

		for _, item := range pageItems {
			if item.ID != "" && !item.IsFolder {
				items = append(items, item)
			}
		}

		c.logger.Debug("fetched listing page",
			"kind", kind,
			"folder", folder,
			"page", page,
			"count", len(pageItems),
			"total", len(items))

		if len(pageItems) < PageSize {
			return items, nil
		}
	}
}

// SearchIDs is SearchItems returning identifiers only.
func (c *Client) SearchIDs(ctx context.Context, kind resource.Kind, folder string, includeSubDirs bool) ([]string, error) {
	items, err := c.SearchItems(ctx, kind, folder, includeSubDirs)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, err
}

// decodeListing finds the item list in a listing response. Depending on the
// server version the items are under items.item, resources.resource, items,
// item, or the response is the list itself; a single item may be sent as an
// object instead of a one-element list.
func decodeListing(body []byte) ([]Item, error) {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	list := findList(raw)
	if list == nil {
		return nil, nil
	}

	var items []Item
	if err := decodeValue("search items", list, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func findList(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, path := range [][]string{{"items", "item"}, {"resources", "resource"}, {"items"}, {"item"}} {
			if found, ok := lookup(v, path); ok {
				return asList(found)
			}
		}
	}
	return nil
}

func lookup(m map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = m
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}

	// A container object is not a list of items.
	if obj, ok := cur.(map[string]interface{}); ok {
		if _, hasID := obj["id"]; !hasID {
			return nil, false
		}
	}
	return cur, true
}

func asList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
