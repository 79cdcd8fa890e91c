// Package airtable mirrors the latest insight per contact into an
// Airtable base via direct HTTP against the records API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

const defaultAPIURL = "https://api.airtable.com/v0"

const (
	fieldContactID = "Contact ID"
	fieldSummary   = "Insight Summary"
)

// Client talks to one table in one Airtable base.
type Client struct {
	apiKey    string
	baseID    string
	tableName string
	baseURL   string
	client    *http.Client
	log       *logger.Logger
}

// NewClient creates an Airtable client for the given base and table.
func NewClient(apiKey, baseID, tableName string, log *logger.Logger) *Client {
	return &Client{
		apiKey:    apiKey,
		baseID:    baseID,
		tableName: tableName,
		baseURL:   defaultAPIURL,
		client:    &http.Client{},
		log:       log,
	}
}

type recordFields struct {
	ContactID string `json:"Contact ID,omitempty"`
	Summary   string `json:"Insight Summary,omitempty"`
}

type record struct {
	ID     string       `json:"id,omitempty"`
	Fields recordFields `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
}

type writeRequest struct {
	Records []record `json:"records"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// UpsertLinkedRecord writes the contact's summary to the mirror table,
// updating the existing record when one is linked to the contact id and
// creating one otherwise.
func (c *Client) UpsertLinkedRecord(ctx context.Context, contactID string, sections insight.Sections) error {
	existing, err := c.findByContactID(ctx, contactID)
	if err != nil {
		return err
	}

	summary := sections.Markdown()
	if existing != "" {
		return c.updateRecord(ctx, existing, summary)
	}
	return c.createRecord(ctx, contactID, summary)
}

func (c *Client) findByContactID(ctx context.Context, contactID string) (string, error) {
	formula := fmt.Sprintf("{%s} = %q", fieldContactID, contactID)
	endpoint := fmt.Sprintf("%s/%s/%s?maxRecords=1&filterByFormula=%s",
		c.baseURL, c.baseID, url.PathEscape(c.tableName), url.QueryEscape(formula))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	respBody, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var resp listResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal airtable response: %w", err)
	}
	if len(resp.Records) == 0 {
		return "", nil
	}
	return resp.Records[0].ID, nil
}

func (c *Client) createRecord(ctx context.Context, contactID, summary string) error {
	body := writeRequest{Records: []record{{
		Fields: recordFields{ContactID: contactID, Summary: summary},
	}}}
	return c.write(ctx, http.MethodPost, "", body)
}

func (c *Client) updateRecord(ctx context.Context, recordID, summary string) error {
	body := writeRequest{Records: []record{{
		ID:     recordID,
		Fields: recordFields{Summary: summary},
	}}}
	return c.write(ctx, http.MethodPatch, "", body)
}

func (c *Client) write(ctx context.Context, method, suffix string, payload writeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal airtable request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s%s", c.baseURL, c.baseID, url.PathEscape(c.tableName), suffix)
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	_, err = c.do(httpReq)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read airtable response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("airtable API error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("airtable returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
