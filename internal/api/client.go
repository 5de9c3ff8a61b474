// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lumina-analytics/lumina-tui/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the backend client.
type Config struct {
	// BaseURL is the backend API base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// SidebarLimit is the maximum sidebar entries to request (default: 50)
	SidebarLimit int

	// PageSize is the messages page size (default: 30)
	PageSize int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "http://127.0.0.1:8000",
		Timeout:      30 * time.Second,
		SidebarLimit: 50,
		PageSize:     model.DefaultPageSize,
	}
}

// CredentialSource supplies the opaque bearer credential attached to every
// request. When no credential is present the client still performs query
// streaming (ephemeral mode) but the caller must not attempt persistence.
type CredentialSource interface {
	Credential() (string, bool)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Lumina backend API.
// It is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	creds      CredentialSource
}

// NewClient creates a backend client. creds may be nil for a client that
// never authenticates.
func NewClient(config *Config, creds CredentialSource) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SidebarLimit == 0 {
		config.SidebarLimit = 50
	}
	if config.PageSize == 0 {
		config.PageSize = model.DefaultPageSize
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		creds:      creds,
	}
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with JSON body and bearer credential.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if token, ok := c.creds.Credential(); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// do executes a request and decodes a JSON response into out (if non-nil).
// Any status not in okStatuses is converted to a typed error.
func (c *Client) do(req *http.Request, out any, okStatuses ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError("request failed", err)
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode, okStatuses) {
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ClientError{Type: ErrTypeTransport, Message: "failed to decode response", Cause: err}
		}
	}
	return nil
}

func statusOK(code int, okStatuses []int) bool {
	for _, s := range okStatuses {
		if code == s {
			return true
		}
	}
	return false
}

// statusError maps an HTTP error status to the client error taxonomy,
// carrying the backend's detail message when one is present.
func (c *Client) statusError(resp *http.Response) error {
	message := "unexpected status from backend: " + resp.Status
	var detail errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil && detail.Detail != "" {
		message = detail.Detail
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ClientError{Type: ErrTypeUnauthorized, Message: message}
	case http.StatusNotFound:
		return &ClientError{Type: ErrTypeNotFound, Message: message}
	default:
		return &ClientError{Type: ErrTypeTransport, Message: message}
	}
}

// requireConfirmed rejects optimistic local ids before they can leak into
// a backend call.
func requireConfirmed(id string) error {
	if model.IsLocalID(id) {
		return ErrLocalID
	}
	return nil
}

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar retrieves the conversation list for the current user, most
// recently active first.
func (c *Client) Sidebar(ctx context.Context, limit int) ([]*model.Conversation, error) {
	if limit <= 0 {
		limit = c.config.SidebarLimit
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/conversations/sidebar?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, err
	}

	var result sidebarResponse
	if err := c.do(req, &result, http.StatusOK); err != nil {
		return nil, err
	}

	conversations := make([]*model.Conversation, 0, len(result.Conversations))
	for _, item := range result.Conversations {
		conversations = append(conversations, item.toModel())
	}
	return conversations, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation creates a conversation, seeding the title from the
// first user message.
func (c *Client) CreateConversation(ctx context.Context, firstMessage string) (*model.Conversation, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/conversations",
		createConversationRequest{FirstMessage: firstMessage})
	if err != nil {
		return nil, err
	}

	var result conversationResponse
	if err := c.do(req, &result, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return result.toModel(), nil
}

// UpdateTitle renames a conversation.
func (c *Client) UpdateTitle(ctx context.Context, conversationID, title string) error {
	if err := requireConfirmed(conversationID); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(conversationID)+"/title",
		updateTitleRequest{Title: title})
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK)
}

// DeleteConversation deletes a conversation and all its messages.
// The backend treats deletion as idempotent; 204 and 200 are both success.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := requireConfirmed(conversationID); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusNoContent, http.StatusOK)
}

// =============================================================================
// MESSAGES
// =============================================================================

// Messages retrieves one page of conversation history. Pages are returned
// oldest-to-newest within the page; the caller prepends older pages.
func (c *Client) Messages(ctx context.Context, conversationID string, page, pageSize int) (*MessagesPage, error) {
	if err := requireConfirmed(conversationID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}

	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages" +
		"?page=" + strconv.Itoa(page) + "&page_size=" + strconv.Itoa(pageSize)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result messagesPageResponse
	if err := c.do(req, &result, http.StatusOK); err != nil {
		return nil, err
	}

	messages := make([]*model.Message, 0, len(result.Messages))
	for _, item := range result.Messages {
		messages = append(messages, item.toModel())
	}
	return &MessagesPage{Messages: messages, Total: result.Total, Page: result.Page, HasMore: result.HasMore}, nil
}

// SendMessage persists a message. Failures are persistence errors: the
// stream already completed, so the caller must not roll back UI state.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, role model.Role) (*SendReceipt, error) {
	if conversationID != "" {
		if err := requireConfirmed(conversationID); err != nil {
			return nil, err
		}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/conversations/messages",
		sendMessageRequest{ConversationID: conversationID, Content: content, Role: role.String()})
	if err != nil {
		return nil, err
	}

	var result SendReceipt
	if err := c.do(req, &result, http.StatusCreated, http.StatusOK); err != nil {
		return nil, asPersistence(err)
	}
	return &result, nil
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// CreateArtifact persists a chart attached to a message. Artifact failure
// is independent of message persistence by design.
func (c *Client) CreateArtifact(ctx context.Context, messageID, conversationID string, chart *model.ChartSpec) error {
	if err := requireConfirmed(messageID); err != nil {
		return err
	}
	if err := requireConfirmed(conversationID); err != nil {
		return err
	}
	if chart == nil {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/conversations/artifacts",
		createArtifactRequest{
			MessageID:      messageID,
			ConversationID: conversationID,
			Type:           "chart",
			ChartType:      chart.Type,
			DataSnapshot:   chart.Data,
		})
	if err != nil {
		return err
	}
	if err := c.do(req, nil, http.StatusCreated, http.StatusOK); err != nil {
		return asPersistence(err)
	}
	return nil
}

// asPersistence reclassifies a write failure after a successful stream,
// keeping cancellation and auth categories intact.
func asPersistence(err error) error {
	if IsCancelled(err) || IsUnauthorized(err) {
		return err
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return &ClientError{Type: ErrTypePersistence, Message: clientErr.Message, Cause: clientErr.Cause}
	}
	return &ClientError{Type: ErrTypePersistence, Message: "backend write failed", Cause: err}
}

// =============================================================================
// QUERY STREAM
// =============================================================================

// Query opens the streaming /query endpoint and returns an EventStream
// positioned before the first event. The caller owns the stream and must
// Close it; cancelling ctx releases the underlying connection.
func (c *Client) Query(ctx context.Context, query string, history []Turn, sessionID string) (*EventStream, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/query",
		queryRequest{Query: query, History: history, SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	// Streaming responses outlive the request timeout; cancellation and
	// transport errors are surfaced through ctx and the body instead.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, transportError("stream request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	return NewEventStream(resp.Body), nil
}
