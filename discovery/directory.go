package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/linksmart/go-sec/auth/obtainer"
	"github.com/linksmart/wot-servient/catalog"
	"github.com/linksmart/wot-servient/servient"
	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

var (
	_ servient.DirectoryClient = (*DirectoryClient)(nil)
	_ servient.Fetcher         = (*DirectoryClient)(nil)
)

// acceptTD is sent when fetching TDs; CBOR is decoded as well
var acceptTD = strings.Join([]string{wot.MediaTypeThingDescription, wot.MediaTypeJSONLD, wot.MediaTypeJSON, wot.MediaTypeCBOR + ";q=0.9"}, ", ")

// HTTPError is returned for unsuccessful responses of a directory or Thing
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// DirectoryClient talks to Thing Directories over HTTP and fetches single TDs
type DirectoryClient struct {
	HTTPClient *http.Client
	// Obtains tokens for directories with authentication enabled; nil for none
	Ticket *obtainer.Client
	// Page size when listing a directory
	PerPage int

	log *logrus.Entry
}

func NewDirectoryClient(ticket *obtainer.Client, logger logrus.FieldLogger) *DirectoryClient {
	return &DirectoryClient{
		HTTPClient: http.DefaultClient,
		Ticket:     ticket,
		PerPage:    catalog.MaxPerPage,
		log:        logger.WithField("component", "directory-client"),
	}
}

// Register creates or replaces the TD in the directory
func (c *DirectoryClient) Register(ctx context.Context, directoryURL string, td wot.ThingDescription) error {
	b, err := json.Marshal(td)
	if err != nil {
		return fmt.Errorf("error serializing TD: %w", err)
	}

	method, endpoint := http.MethodPut, directoryURL+"/td/"+url.PathEscape(td.ID)
	if td.ID == "" {
		method, endpoint = http.MethodPost, directoryURL+"/td"
	}
	res, err := c.do(ctx, method, endpoint, b, map[string]string{"Content-Type": wot.MediaTypeThingDescription})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusNoContent {
		return errorFrom(res)
	}
	c.log.WithField("thing", td.ID).Debugf("Registered in %s", directoryURL)
	return nil
}

func (c *DirectoryClient) Unregister(ctx context.Context, directoryURL string, id string) error {
	res, err := c.do(ctx, http.MethodDelete, directoryURL+"/td/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return errorFrom(res)
	}
	c.log.WithField("thing", id).Debugf("Unregistered from %s", directoryURL)
	return nil
}

// Search lists the directory, or runs a JSONPath (starting with "$") or XPath search on it
func (c *DirectoryClient) Search(ctx context.Context, directoryURL string, query string) ([]wot.ThingDescription, error) {
	if query == "" {
		return c.list(ctx, directoryURL)
	}

	endpoint := directoryURL + "/search/xpath"
	if strings.HasPrefix(strings.TrimSpace(query), "$") {
		endpoint = directoryURL + "/search/jsonpath"
	}
	endpoint += "?" + url.Values{"query": []string{query}}.Encode()

	var results []json.RawMessage
	if err := c.getJSON(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	// a query may select parts of TDs, only whole TDs are discovered
	tds := make([]wot.ThingDescription, 0, len(results))
	for _, r := range results {
		var td wot.ThingDescription
		if err := json.Unmarshal(r, &td); err != nil || td.Title == "" {
			c.log.Debugf("Skipping search result which is not a TD: %s", r)
			continue
		}
		tds = append(tds, td)
	}
	return tds, nil
}

func (c *DirectoryClient) list(ctx context.Context, directoryURL string) ([]wot.ThingDescription, error) {
	var tds []wot.ThingDescription
	for page := 1; ; page++ {
		query := url.Values{
			catalog.GetParamPage:    []string{strconv.Itoa(page)},
			catalog.GetParamPerPage: []string{strconv.Itoa(c.PerPage)},
		}
		var coll struct {
			Items []wot.ThingDescription `json:"items"`
			Total int                    `json:"total"`
		}
		if err := c.getJSON(ctx, directoryURL+"/td?"+query.Encode(), &coll); err != nil {
			return nil, err
		}
		tds = append(tds, coll.Items...)

		if len(coll.Items) == 0 || page*c.PerPage >= coll.Total {
			return tds, nil
		}
	}
}

// Fetch retrieves a single TD, e.g. from a Thing's well-known URL
func (c *DirectoryClient) Fetch(ctx context.Context, tdURL string) (wot.ThingDescription, error) {
	res, err := c.do(ctx, http.MethodGet, tdURL, nil, map[string]string{"Accept": acceptTD})
	if err != nil {
		return wot.ThingDescription{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return wot.ThingDescription{}, errorFrom(res)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return wot.ThingDescription{}, err
	}

	var td wot.ThingDescription
	if err := wot.Unmarshal(res.Header.Get("Content-Type"), b, &td); err != nil {
		return wot.ThingDescription{}, fmt.Errorf("error decoding TD from %s: %w", tdURL, err)
	}
	return td, nil
}

func (c *DirectoryClient) getJSON(ctx context.Context, endpoint string, v any) error {
	res, err := c.do(ctx, http.MethodGet, endpoint, nil, map[string]string{"Accept": wot.MediaTypeJSON})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errorFrom(res)
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("error decoding response of %s: %w", endpoint, err)
	}
	return nil
}

// do sends the request, with a bearer token if a ticket client is set.
// The token is renewed once if the directory rejects it.
func (c *DirectoryClient) do(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) (*http.Response, error) {
	send := func(bearer string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		return c.HTTPClient.Do(req)
	}

	if c.Ticket == nil {
		return send("")
	}

	bearer, err := c.Ticket.Obtain()
	if err != nil {
		return nil, fmt.Errorf("error obtaining token: %w", err)
	}
	res, err := send(bearer)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		res.Body.Close()
		c.log.Debug("Invalid token, renewing")
		bearer, err = c.Ticket.Renew()
		if err != nil {
			return nil, fmt.Errorf("error renewing token: %w", err)
		}
		return send(bearer)
	}
	return res, nil
}

func errorFrom(res *http.Response) error {
	b, _ := io.ReadAll(res.Body)
	var e catalog.Error
	if err := json.Unmarshal(b, &e); err == nil && e.Message != "" {
		return &HTTPError{StatusCode: res.StatusCode, Message: e.Message}
	}
	return &HTTPError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(b))}
}
