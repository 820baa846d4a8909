package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// maxPageSize is the largest page the query endpoint returns
const maxPageSize = 1000

// query runs a select statement, following pages until a short page is
// returned. collect receives each page and returns the number of records it
// held.
func (c *Client) query(ctx context.Context, realmID, operation, statement string, collect func(*queryResponse) int) error {
	for start := 1; ; start += maxPageSize {
		stmt := fmt.Sprintf("%s STARTPOSITION %d MAXRESULTS %d", statement, start, maxPageSize)
		var resp queryResponse
		if _, err := c.do(ctx, realmID, request{
			operation: operation,
			method:    http.MethodGet,
			path:      "query",
			query:     url.Values{"query": {stmt}},
			read:      true,
		}, &resp); err != nil {
			return err
		}
		if collect(&resp) < maxPageSize {
			return nil
		}
	}
}

// read fetches a single entity by id
func (c *Client) read(ctx context.Context, realmID, operation, entity, id string) (*entityResponse, error) {
	var resp entityResponse
	if _, err := c.do(ctx, realmID, request{
		operation: operation,
		method:    http.MethodGet,
		path:      entity + "/" + url.PathEscape(id),
		read:      true,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// write creates an entity, or sparse-updates it when the body carries an Id
func (c *Client) write(ctx context.Context, realmID, operation, entity string, body any) (*entityResponse, error) {
	var resp entityResponse
	if _, err := c.do(ctx, realmID, request{
		operation: operation,
		method:    http.MethodPost,
		path:      entity,
		body:      body,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
