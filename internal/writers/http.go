package writers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/pkg/models"
)

// HTTP sends every record to a REST endpoint. Keys:
//
//	<w>_url               base URL
//	<w>_<e>_format        json (default), form or query
//	<w>_<e>_update        PUT to <url>/<dest>?<filter fields> or, without
//	                      filter fields, <url>/<dest>/<unique id>
//	<w>_auth_token        bearer token, may be encrypted
//	<w>_timeout_seconds   default 30
//
// A non-2xx response fails the batch with the status as error code.
type HTTP struct {
	mapped
	client *http.Client
	base   string
	token  string
}

func (h *HTTP) Initialize(_ context.Context, rc config.Resolver) error {
	h.init(rc)
	base, err := rc.Require("", "url")
	if err != nil {
		return err
	}
	h.base = strings.TrimRight(base, "/")
	if h.token, err = rc.Decoded("", "auth_token"); err != nil {
		return err
	}
	h.client = &http.Client{Timeout: time.Duration(rc.Number("", "timeout_seconds", 30)) * time.Second}
	return nil
}

func (h *HTTP) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	wm, err := h.load(e)
	if err != nil {
		return err
	}
	switch f := h.rc.String(e.Name(), "format", "json"); f {
	case "json", "form", "query":
	default:
		return config.Errorf(h.rc.Key(e.Name(), "format"), "unknown format %q", f)
	}
	if h.rc.IsYes(e.Name(), "update", false) && wm.UniqueIDField() == "" && len(wm.FilterFields()) == 0 {
		return config.Errorf(h.rc.Key(e.Name(), "dest_unique_id_field"), "updates need a unique id or filter fields")
	}
	return nil
}

func (h *HTTP) WriteHeader(context.Context, *models.SourceEntity) error { return nil }

func (h *HTTP) WriteBatch(ctx context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	wm, err := h.mapping(e)
	if err != nil {
		return err
	}
	format := h.rc.String(e.Name(), "format", "json")
	update := h.rc.IsYes(e.Name(), "update", false)
	for _, rec := range b.Records() {
		req, err := h.request(ctx, wm, rec, format, update)
		if err != nil {
			return err
		}
		if err := h.send(req); err != nil {
			return err
		}
	}
	return nil
}

type request struct {
	method      string
	url         string
	query       []string
	body        string
	contentType string
}

// target makes r an update of the record selected by the filter fields
// (as query parameters) or by the unique id (as last path segment).
func (r *request) target(wm *mapping.WriterMapping, filter func() (string, error), id func() (string, error)) error {
	r.method = http.MethodPut
	if len(wm.FilterFields()) > 0 {
		q, err := filter()
		if err != nil {
			return err
		}
		r.query = append(r.query, q)
		return nil
	}
	v, err := id()
	if err != nil {
		return err
	}
	r.url += "/" + v
	return nil
}

func (h *HTTP) request(ctx context.Context, wm *mapping.WriterMapping, rec []string, format string, update bool) (*http.Request, error) {
	r := request{method: http.MethodPost, url: h.base + "/" + wm.DestEntity()}
	if !wm.HasMapping() {
		if update {
			err := r.target(wm,
				func() (string, error) { return wm.ParamsForFilterWithoutMapping(rec) },
				func() (string, error) { return wm.ValueForSingleFilterWithoutMapping(rec, wm.UniqueIDField()) })
			if err != nil {
				return nil, err
			}
		}
		switch format {
		case "json":
			r.body, r.contentType = wm.JSONWithoutMapping(rec), "application/json"
		case "form":
			r.body, r.contentType = wm.PostParamsWithoutMapping(rec), "application/x-www-form-urlencoded"
		default:
			r.query = append(r.query, wm.PostParamsWithoutMapping(rec))
		}
		return r.build(ctx, h.token)
	}

	row, err := wm.Resolve(rec)
	if err != nil {
		return nil, err
	}
	if update {
		err := r.target(wm,
			func() (string, error) { return row.ParamsForFilter() },
			func() (string, error) { return row.ValueForSingleFilter(wm.UniqueIDField()) })
		if err != nil {
			return nil, err
		}
	}
	switch format {
	case "json":
		if update {
			r.body = row.JSONUpdate()
		} else {
			r.body = row.JSONInsert()
		}
		r.contentType = "application/json"
	case "form":
		r.body, r.contentType = row.Params(!update), "application/x-www-form-urlencoded"
	default:
		r.query = append(r.query, row.Params(!update))
	}
	return r.build(ctx, h.token)
}

func (r request) build(ctx context.Context, token string) (*http.Request, error) {
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	u := r.url
	if len(r.query) > 0 {
		u += "?" + strings.Join(r.query, "&")
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (h *HTTP) send(req *http.Request) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &etl.WriterError{
		Writer:     h.rc.Name(),
		Code:       resp.StatusCode,
		RawMessage: strings.TrimSpace(string(raw)),
		Err:        fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status),
	}
}

func (h *HTTP) Close(context.Context) error {
	if h.client != nil {
		h.client.CloseIdleConnections()
	}
	return nil
}
