package directory

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// GraphClient implements Client against Microsoft Graph v1.0 with
// application (client credentials) auth.
type GraphClient struct {
	tenantID     string
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGraphClient creates a Graph client for the given tenant and
// application credentials.
func NewGraphClient(tenantID, clientID, clientSecret string) *GraphClient {
	return &GraphClient{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://graph.microsoft.com/v1.0",
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        5,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// graphObject is the subset of directoryObject fields the resolver needs.
// The @odata.type discriminant carries the member's concrete type.
type graphObject struct {
	ODataType         string `json:"@odata.type"`
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// graphList is the standard Graph collection envelope.
type graphList struct {
	NextLink string        `json:"@odata.nextLink"`
	Value    []graphObject `json:"value"`
}

// kindFromOData maps a directoryObject discriminant to a Kind.
func kindFromOData(odataType string) Kind {
	switch odataType {
	case "#microsoft.graph.user":
		return KindUser
	case "#microsoft.graph.device":
		return KindDevice
	case "#microsoft.graph.servicePrincipal":
		return KindServicePrincipal
	case "#microsoft.graph.group":
		return KindGroup
	default:
		return KindUnknown
	}
}

// token returns a cached app-only access token, refreshing when expired.
func (c *GraphClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	c.accessToken = tok.AccessToken
	// Refresh a minute early so in-flight requests never carry a stale token.
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

// get performs an authenticated GET and decodes the JSON response.
// A 404 maps to ErrNotFound.
func (c *GraphClient) get(ctx context.Context, requestURL string, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// listRefs walks a paged collection, following @odata.nextLink until
// exhausted.
func (c *GraphClient) listRefs(ctx context.Context, firstURL string) ([]MemberRef, error) {
	var refs []MemberRef
	pageURL := firstURL
	for pageURL != "" {
		var page graphList
		if err := c.get(ctx, pageURL, &page); err != nil {
			return nil, err
		}
		for _, obj := range page.Value {
			refs = append(refs, MemberRef{ID: obj.ID, Kind: kindFromOData(obj.ODataType)})
		}
		pageURL = page.NextLink
	}
	return refs, nil
}

// odataQuote escapes a value for use inside an OData string literal.
func odataQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// GroupByName finds a group by exact display name.
func (c *GraphClient) GroupByName(ctx context.Context, name string) (*Group, error) {
	filter := fmt.Sprintf("displayName eq '%s'", odataQuote(name))
	requestURL := fmt.Sprintf("%s/groups?$filter=%s&$select=id,displayName",
		c.baseURL, url.QueryEscape(filter))

	var page graphList
	if err := c.get(ctx, requestURL, &page); err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, ErrNotFound
	}
	return &Group{ID: page.Value[0].ID, DisplayName: page.Value[0].DisplayName}, nil
}

// Group fetches one group by ID.
func (c *GraphClient) Group(ctx context.Context, id string) (*Group, error) {
	var obj graphObject
	requestURL := fmt.Sprintf("%s/groups/%s?$select=id,displayName", c.baseURL, url.PathEscape(id))
	if err := c.get(ctx, requestURL, &obj); err != nil {
		return nil, err
	}
	return &Group{ID: obj.ID, DisplayName: obj.DisplayName}, nil
}

// GroupMembers lists a group's direct members across all pages.
func (c *GraphClient) GroupMembers(ctx context.Context, groupID string) ([]MemberRef, error) {
	firstURL := fmt.Sprintf("%s/groups/%s/members?$select=id,displayName,userPrincipalName&$top=999",
		c.baseURL, url.PathEscape(groupID))
	return c.listRefs(ctx, firstURL)
}

// User fetches one user by ID.
func (c *GraphClient) User(ctx context.Context, id string) (*User, error) {
	var obj graphObject
	requestURL := fmt.Sprintf("%s/users/%s?$select=id,displayName,userPrincipalName",
		c.baseURL, url.PathEscape(id))
	if err := c.get(ctx, requestURL, &obj); err != nil {
		return nil, err
	}
	return &User{ID: obj.ID, DisplayName: obj.DisplayName, UserPrincipalName: obj.UserPrincipalName}, nil
}

// Device fetches one device by ID.
func (c *GraphClient) Device(ctx context.Context, id string) (*Device, error) {
	var obj graphObject
	requestURL := fmt.Sprintf("%s/devices/%s?$select=id,displayName", c.baseURL, url.PathEscape(id))
	if err := c.get(ctx, requestURL, &obj); err != nil {
		return nil, err
	}
	return &Device{ID: obj.ID, DisplayName: obj.DisplayName}, nil
}

// ServicePrincipal fetches one service principal by ID.
func (c *GraphClient) ServicePrincipal(ctx context.Context, id string) (*ServicePrincipal, error) {
	var obj graphObject
	requestURL := fmt.Sprintf("%s/servicePrincipals/%s?$select=id,displayName",
		c.baseURL, url.PathEscape(id))
	if err := c.get(ctx, requestURL, &obj); err != nil {
		return nil, err
	}
	return &ServicePrincipal{ID: obj.ID, DisplayName: obj.DisplayName}, nil
}

// DeviceOwners lists a device's registered owners across all pages.
func (c *GraphClient) DeviceOwners(ctx context.Context, deviceID string) ([]MemberRef, error) {
	firstURL := fmt.Sprintf("%s/devices/%s/registeredOwners?$select=id,displayName&$top=999",
		c.baseURL, url.PathEscape(deviceID))
	return c.listRefs(ctx, firstURL)
}
