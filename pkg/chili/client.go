package chili

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	"github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

const apiPrefix = "/rest-api/v1.2"

// Client is the resource API of one environment bound to one API key.
type Client struct {
	base       string
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        *Config
	logger     hclog.Logger
}

var _ transfer.API = (*Client)(nil)

// resourcePath builds the path of a resource collection or item endpoint.
func resourcePath(kind resource.Kind, segments ...string) string {
	parts := []string{"resources", string(kind)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return "/" + strings.Join(parts, "/")
}

// GetDefinition returns an item's definition.
func (c *Client) GetDefinition(ctx context.Context, kind resource.Kind, id string) (resource.Definition, error) {
	var resp definitionResponse
	if err := c.getJSON(ctx, "get definition", resourcePath(kind, "items", id, "definitionxml"), nil, &resp); err != nil {
		return resource.Definition{}, err
	}
	if resp.ID == "" {
		return resource.Definition{}, fmt.Errorf("%s/%s: %w", kind, id, transfer.ErrNotFound)
	}
	return resp.definition(), nil
}

// ReserveID sets the identifier of the next item of kind added with this
// client's key.
func (c *Client) ReserveID(ctx context.Context, kind resource.Kind, id string) (bool, error) {
	query := url.Values{"itemID": {id}}

	var resp nextItemIDResponse
	if err := c.doJSON(ctx, "reserve identifier", http.MethodPut, resourcePath(kind, "nextitemid"), query, nil, &resp); err != nil {
		return false, err
	}
	return resp.Finished == nil || *resp.Finished, nil
}

// Download returns the original file of a binary item.
func (c *Client) Download(ctx context.Context, kind resource.Kind, id string) ([]byte, error) {
	query := url.Values{
		"id":      {id},
		"type":    {"original"},
		"pageNum": {"1"},
	}
	return c.getRaw(ctx, "download", resourcePath(kind, "download"), query)
}

// GetXML returns the XML of an item.
func (c *Client) GetXML(ctx context.Context, kind resource.Kind, id string) (string, error) {
	body, err := c.getRaw(ctx, "get xml", resourcePath(kind, "items", id, "xml"), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// AddItem adds an item under the identifier reserved with this client's key.
func (c *Client) AddItem(ctx context.Context, kind resource.Kind, name, folder string, payload transfer.Payload) error {
	query := url.Values{
		"newName":    {name},
		"folderPath": {folder},
	}
	body := itemBody{XML: payload.XML}
	if payload.FileData != nil {
		body.FileData = base64.StdEncoding.EncodeToString(payload.FileData)
	}
	return c.doJSON(ctx, "add item", http.MethodPost, resourcePath(kind, "items"), query, body, nil)
}

// ReplaceFile replaces the file of an existing binary item.
func (c *Client) ReplaceFile(ctx context.Context, kind resource.Kind, id string, data []byte) error {
	body := itemBody{FileData: base64.StdEncoding.EncodeToString(data)}
	return c.doJSON(ctx, "replace file", http.MethodPut, resourcePath(kind, "items", id, "file"), nil, body, nil)
}

// SaveXML overwrites the XML of an existing item.
func (c *Client) SaveXML(ctx context.Context, kind resource.Kind, id, xml string) error {
	body := itemBody{XML: xml}
	return c.doJSON(ctx, "save item", http.MethodPut, resourcePath(kind, "items", id, "save"), nil, body, nil)
}

// ProcessServerSide regenerates a document's server side state from its XML.
func (c *Client) ProcessServerSide(ctx context.Context, id string) error {
	path := "/resources/documents/" + url.PathEscape(id) + "/processserverside"
	return c.doJSON(ctx, "process server side", http.MethodPut, path, nil, nil, nil)
}

// DeleteItem deletes an item.
func (c *Client) DeleteItem(ctx context.Context, kind resource.Kind, id string) error {
	return c.doJSON(ctx, "delete item", http.MethodDelete, resourcePath(kind, "items", id), nil, nil, nil)
}

// SetPreviewGeneration toggles automatic preview generation for this key.
func (c *Client) SetPreviewGeneration(ctx context.Context, enabled bool) error {
	query := url.Values{"createPreviews": {fmt.Sprintf("%t", enabled)}}
	return c.doJSON(ctx, "set preview generation", http.MethodPut, "/system/apikey/autopreviewgeneration", query, nil, nil)
}

// getJSON performs a read request and decodes its JSON response into result.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, result interface{}) error {
	body, err := c.getRaw(ctx, op, path, query)
	if err != nil {
		return err
	}
	return decode(op, body, result)
}

// getRaw performs a read request, repeating it on transport errors and
// server errors.
func (c *Client) getRaw(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	var body []byte
	operation := func() error {
		var err error
		body, err = c.do(ctx, op, http.MethodGet, path, query, nil)
		if err == nil {
			return nil
		}

		var terr *transfer.TransportError
		if errors.As(err, &terr) && terr.StatusCode != 0 && terr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.MaxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(operation, b, func(err error, next time.Duration) {
		c.logger.Debug("request failed, retrying", "op", op, "path", path, "next_in", next, "error", err)
	})
	return body, err
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into result when given.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	respBody, err := c.do(ctx, op, method, path, query, payload)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	return decode(op, respBody, result)
}

// do executes one HTTP request and maps non-success responses to
// *transfer.TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	endpoint := c.base + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.key != "" {
		req.Header.Set("api-key", c.key)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &transfer.TransportError{Op: op, Err: err}
		}
	}

	c.logger.Trace("request", "op", op, "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transfer.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transfer.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &transfer.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       errorMessage(respBody),
		}
		if resp.StatusCode == http.StatusNotFound {
			terr.Err = transfer.ErrNotFound
		}
		return nil, terr
	}

	return respBody, nil
}

// errorMessage extracts the message of an error response, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	return msg
}

// decode unmarshals a JSON response and maps it onto result. The server sends
// most scalars as strings ("true", "1024"), so the mapping is weakly typed.
func decode(op string, body []byte, result interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return decodeValue(op, raw, result)
}

func decodeValue(op string, raw interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           result,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("%s: unexpected response: %w", op, err)
	}
	return nil
}
