package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Tiliavir/tsheet/internal/model"
)

func rangeQuery(from, to string) url.Values {
	q := url.Values{}
	if from != "" {
		q.Set("startDate", from)
	}
	if to != "" {
		q.Set("endDate", to)
	}
	return q
}

// ListRecords returns the signed-in user's records between from and to
// (YYYY-MM-DD, inclusive). Empty bounds are left open.
func (c *Client) ListRecords(ctx context.Context, from, to string) ([]model.Record, error) {
	var out []model.Record
	if err := c.do(ctx, c.authed, http.MethodGet, "/records", rangeQuery(from, to), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterRecords is ListRecords against the dedicated filter endpoint.
func (c *Client) FilterRecords(ctx context.Context, from, to string) ([]model.Record, error) {
	var out []model.Record
	if err := c.do(ctx, c.authed, http.MethodGet, "/records/filter", rangeQuery(from, to), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllRecords returns every user's records. Admin only.
func (c *Client) AllRecords(ctx context.Context) ([]model.Record, error) {
	var out []model.Record
	if err := c.do(ctx, c.authed, http.MethodGet, "/records/all-records", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type recordReply struct {
	Record        model.Record `json:"record"`
	UpdatedRecord model.Record `json:"updatedRecord"`
	Message       string       `json:"message"`
}

// CreateRecord books a record for the signed-in user and returns the stored
// record with the server's message.
func (c *Client) CreateRecord(ctx context.Context, in model.RecordInput) (model.Record, string, error) {
	var out recordReply
	if err := c.do(ctx, c.authed, http.MethodPost, "/records", nil, in, &out); err != nil {
		return model.Record{}, "", err
	}
	return out.Record, out.Message, nil
}

// CreateRecordFor books a record on behalf of the user with the given email.
// Admin only.
func (c *Client) CreateRecordFor(ctx context.Context, email string, in model.RecordInput) (model.Record, string, error) {
	var out recordReply
	path := "/records/admin-record-create/" + url.PathEscape(email)
	if err := c.do(ctx, c.authed, http.MethodPost, path, nil, in, &out); err != nil {
		return model.Record{}, "", err
	}
	return out.Record, out.Message, nil
}

// UpdateRecord applies patch to record id and returns the server's copy.
func (c *Client) UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (model.Record, string, error) {
	var out recordReply
	if err := c.do(ctx, c.authed, http.MethodPut, "/records/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return model.Record{}, "", err
	}
	return out.UpdatedRecord, out.Message, nil
}

// DeleteRecord removes record id.
func (c *Client) DeleteRecord(ctx context.Context, id string) (string, error) {
	var out message
	if err := c.do(ctx, c.authed, http.MethodDelete, "/records/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ExportRecords streams the backend's CSV export of userID's records into w
// and returns the number of bytes written.
func (c *Client) ExportRecords(ctx context.Context, userID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/records/export/"+url.PathEscape(userID), nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/csv, application/octet-stream")
	resp, err := c.send(c.authed, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("streaming export: %w", err)
	}
	return n, nil
}
