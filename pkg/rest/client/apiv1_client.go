// Package client provides a basic REST client for Courier
package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/inbucket/courier/pkg/rest/model"
)

// Client accesses the Courier REST API v1
type Client struct {
	restClient
}

// ReadOptions selects the messages returned by Read.  Zero values use the server defaults.
type ReadOptions struct {
	MessageID   string
	Query       string
	Labels      []string
	MaxResults  int
	IncludeBody *bool
}

func (o ReadOptions) values() url.Values {
	v := url.Values{}
	if o.MessageID != "" {
		v.Set("message_id", o.MessageID)
	}
	if o.Query != "" {
		v.Set("query", o.Query)
	}
	if len(o.Labels) > 0 {
		v.Set("labels", strings.Join(o.Labels, ","))
	}
	if o.MaxResults != 0 {
		v.Set("max_results", strconv.Itoa(o.MaxResults))
	}
	if o.IncludeBody != nil {
		v.Set("include_body", strconv.FormatBool(*o.IncludeBody))
	}
	return v
}

// New creates a new v1 REST API client given the base URL of a Courier server, ex:
// "http://localhost:9300"
func New(baseURL string, opts ...func(*ClientOptions)) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	options := getDefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient{
			client: &http.Client{
				Timeout:   options.timeout,
				Transport: options.transport,
			},
			baseURL: parsedURL,
		},
	}
	return c, nil
}

func mailboxURI(name string, elem ...string) string {
	return "/api/v1/mailbox/" + strings.Join(append([]string{name}, elem...), "/")
}

// Read returns the messages of a mailbox matching opts, most recent first.
func (c *Client) Read(
	ctx context.Context,
	name string,
	opts ReadOptions,
) (*model.JSONReadResultV1, error) {
	result := &model.JSONReadResultV1{}
	err := c.doJSON(ctx, "GET", mailboxURI(name, "messages"), opts.values(), nil, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetMessage returns the message details given a mailbox name and message ID.
func (c *Client) GetMessage(ctx context.Context, name, id string) (*model.JSONMessageV1, error) {
	msg := &model.JSONMessageV1{}
	if err := c.doJSON(ctx, "GET", mailboxURI(name, "messages", id), nil, nil, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ModifyLabels adds and removes labels on a message, returning the updated message.
func (c *Client) ModifyLabels(
	ctx context.Context,
	name, id string,
	add, remove []string,
) (*model.JSONMessageV1, error) {
	msg := &model.JSONMessageV1{}
	patch := &model.JSONLabelsPatchV1{AddLabels: add, RemoveLabels: remove}
	if err := c.doJSON(ctx, "PATCH", mailboxURI(name, "messages", id), nil, patch, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessageSource returns the message source given a mailbox name and message ID.
func (c *Client) GetMessageSource(ctx context.Context, name, id string) (*bytes.Buffer, error) {
	resp, err := c.do(ctx, "GET", mailboxURI(name, "messages", id, "source"), nil, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	return buf, err
}

// DeleteMessage deletes a single message given the mailbox name and message ID.
func (c *Client) DeleteMessage(ctx context.Context, name, id string) error {
	return c.doJSON(ctx, "DELETE", mailboxURI(name, "messages", id), nil, nil, nil)
}

// PurgeMailbox deletes all messages in the given mailbox
func (c *Client) PurgeMailbox(ctx context.Context, name string) error {
	return c.doJSON(ctx, "DELETE", mailboxURI(name), nil, nil, nil)
}

// Send sends, or schedules, a message from the named mailbox.
func (c *Client) Send(
	ctx context.Context,
	name string,
	req *model.JSONSendRequestV1,
) (*model.JSONSendResultV1, error) {
	result := &model.JSONSendResultV1{}
	if err := c.doJSON(ctx, "POST", mailboxURI(name, "send"), nil, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// WriteDraft creates a draft, or updates it when req.DraftID is set.
func (c *Client) WriteDraft(
	ctx context.Context,
	name string,
	req *model.JSONDraftRequestV1,
) (*model.JSONDraftResultV1, error) {
	result := &model.JSONDraftResultV1{}
	if err := c.doJSON(ctx, "POST", mailboxURI(name, "drafts"), nil, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListDrafts returns the drafts of a mailbox, most recently updated first.
func (c *Client) ListDrafts(ctx context.Context, name string) ([]*model.JSONDraftV1, error) {
	var drafts []*model.JSONDraftV1
	if err := c.doJSON(ctx, "GET", mailboxURI(name, "drafts"), nil, nil, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// GetDraft returns a draft given a mailbox name and draft ID.
func (c *Client) GetDraft(ctx context.Context, name, id string) (*model.JSONDraftV1, error) {
	d := &model.JSONDraftV1{}
	if err := c.doJSON(ctx, "GET", mailboxURI(name, "drafts", id), nil, nil, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDraft discards a draft.
func (c *Client) DeleteDraft(ctx context.Context, name, id string) error {
	return c.doJSON(ctx, "DELETE", mailboxURI(name, "drafts", id), nil, nil, nil)
}

// SendDraft sends, or schedules, a draft.  A nil req sends immediately.
func (c *Client) SendDraft(
	ctx context.Context,
	name, id string,
	req *model.JSONSendDraftRequestV1,
) (*model.JSONSendResultV1, error) {
	if req == nil {
		req = &model.JSONSendDraftRequestV1{}
	}
	result := &model.JSONSendResultV1{}
	err := c.doJSON(ctx, "POST", mailboxURI(name, "drafts", id, "send"), nil, req, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Pay triggers a repayment.  Failed and pending charges are reported in the result status.
func (c *Client) Pay(
	ctx context.Context,
	req *model.JSONRepaymentRequestV1,
) (*model.JSONRepaymentResultV1, error) {
	result := &model.JSONRepaymentResultV1{}
	if err := c.doJSON(ctx, "POST", "/api/v1/repayments", nil, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRepayment returns the metadata stored for an entity.
func (c *Client) GetRepayment(
	ctx context.Context,
	entityID string,
) (*model.JSONRepaymentRecordV1, error) {
	r := &model.JSONRepaymentRecordV1{}
	if err := c.doJSON(ctx, "GET", "/api/v1/repayments/"+entityID, nil, nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// IsNotFound returns true if err is a 404 response from the server.
func IsNotFound(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.StatusCode == http.StatusNotFound
}
