package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	maxBodyBytes = 1 << 20
)

// parseScalar turns a path or query value into an int64 when it is an
// integer, so numeric identities match across executors
func parseScalar(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// parseQuery splits the query string into a filter and a limit. Every
// parameter except limit is an equality filter.
func parseQuery(values url.Values) (map[string]interface{}, int, error) {
	limit := defaultLimit
	filter := make(map[string]interface{})
	for name, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if name == "limit" {
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 1 {
				return nil, 0, fmt.Errorf("invalid limit %q", vals[0])
			}
			if n > maxLimit {
				n = maxLimit
			}
			limit = n
			continue
		}
		filter[name] = parseScalar(vals[0])
	}
	return filter, limit, nil
}

// decodeBody reads a JSON object. Integral numbers become int64 and the
// rest float64.
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	for k, v := range body {
		body[k] = normalizeNumber(v)
	}
	return body, nil
}

func normalizeNumber(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
