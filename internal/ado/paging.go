package ado

import (
	"context"
	"net/url"
	"strconv"

	"adoinventory/internal/outcome"
)

const continuationHeader = "x-ms-continuationtoken"

// maxPages bounds continuation loops against a server that never stops returning tokens.
const maxPages = 10000

// listAll follows continuation tokens from the response header or body until
// the listing is complete. A failure on any page fails the whole listing.
func listAll[T any](ctx context.Context, c *Client, build func(q url.Values) string, q url.Values) ([]T, outcome.Outcome) {
	if q == nil {
		q = url.Values{}
	}
	var all []T
	for page := 0; page < maxPages; page++ {
		resp, header, o := getJSON[listResponse[T]](ctx, c, build(cloneValues(q)))
		if !o.OK() {
			return all, o
		}
		all = append(all, resp.Value...)

		token := header.Get(continuationHeader)
		if token == "" {
			token = resp.ContinuationToken
		}
		if token == "" || token == q.Get("continuationToken") {
			return all, o
		}
		q.Set("continuationToken", token)
	}
	return all, outcome.OK(200)
}

// listSkip pages a $top/$skip listing until a short page is returned.
func listSkip[T any](ctx context.Context, c *Client, top int, build func(q url.Values) string, items func(resp T) int) ([]T, outcome.Outcome) {
	var pages []T
	for skip := 0; len(pages) < maxPages; skip += top {
		q := url.Values{}
		q.Set("$top", strconv.Itoa(top))
		q.Set("$skip", strconv.Itoa(skip))
		resp, _, o := getJSON[T](ctx, c, build(q))
		if !o.OK() {
			return pages, o
		}
		pages = append(pages, resp)
		if items(resp) < top {
			return pages, o
		}
	}
	return pages, outcome.OK(200)
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
