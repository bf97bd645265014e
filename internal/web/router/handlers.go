package router

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/unitofwork"
	"github.com/conduit-lang/activerow/internal/web/response"
)

type handlers struct {
	mgr    *entity.Manager
	logger *zap.Logger
}

type linkInfo struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Cardinality string `json:"cardinality"`
}

type modelInfo struct {
	Name     string     `json:"name"`
	Table    string     `json:"table"`
	KeyField string     `json:"key,omitempty"`
	Fields   []string   `json:"fields"`
	Links    []linkInfo `json:"links,omitempty"`
	Autosave bool       `json:"autosave"`
}

func describe(m *schema.Model) modelInfo {
	info := modelInfo{
		Name:     m.Name,
		Table:    m.Table,
		KeyField: m.KeyField,
		Fields:   m.Fields,
		Autosave: m.Autosave(),
	}
	for _, l := range m.Links {
		card := relationships.One
		if l.Many {
			card = relationships.Many
		}
		info.Links = append(info.Links, linkInfo{Name: l.Name(), Target: l.Target, Cardinality: card.String()})
	}
	return info
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	reg := h.mgr.Registry()
	names := reg.List()
	out := make([]modelInfo, 0, len(names))
	for _, name := range names {
		if m, ok := reg.Get(name); ok {
			out = append(out, describe(m))
		}
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"data": out})
}

func (h *handlers) describeModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.mgr.Registry().Lookup(chi.URLParam(r, "model"))
	if err != nil {
		response.RenderError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"data": describe(m)})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, limit, err := parseQuery(r.URL.Query())
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	coll, err := unitofwork.MustFromContext(ctx).Query(chi.URLParam(r, "model"), filter)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	h.renderCollection(ctx, w, coll.Take(limit))
}

func (h *handlers) renderCollection(ctx context.Context, w http.ResponseWriter, coll *entity.Collection) {
	entities, err := coll.All(ctx)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	data := make([]map[string]interface{}, 0, len(entities))
	for _, e := range entities {
		row, err := e.ToArray(ctx)
		if err != nil {
			response.RenderError(w, err)
			return
		}
		data = append(data, row)
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"data": data, "count": len(data)})
}

func (h *handlers) renderEntity(ctx context.Context, w http.ResponseWriter, status int, e *entity.Entity) {
	row, err := e.ToArray(ctx)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	response.JSON(w, status, map[string]interface{}{"data": row})
}

func (h *handlers) find(r *http.Request) (*entity.Entity, error) {
	s := unitofwork.MustFromContext(r.Context())
	return s.Find(r.Context(), chi.URLParam(r, "model"), parseScalar(chi.URLParam(r, "key")))
}

func (h *handlers) show(w http.ResponseWriter, r *http.Request) {
	e, err := h.find(r)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	h.renderEntity(r.Context(), w, http.StatusOK, e)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := decodeBody(r)
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	e, err := unitofwork.MustFromContext(ctx).New(chi.URLParam(r, "model"), body)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if !h.save(ctx, w, e) {
		return
	}
	h.renderEntity(ctx, w, http.StatusCreated, e)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := decodeBody(r)
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	e, err := h.find(r)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := e.SetAll(body); err != nil {
		e.Discard()
		response.RenderError(w, err)
		return
	}
	if !h.save(ctx, w, e) {
		return
	}
	h.renderEntity(ctx, w, http.StatusOK, e)
}

// save flushes e now so failures reach the client. On failure it renders
// the error and reports false; e's pending changes are discarded so the
// unit of work does not write them on close.
func (h *handlers) save(ctx context.Context, w http.ResponseWriter, e *entity.Entity) bool {
	if errs := e.GetErrors(); errs.HasErrors() {
		e.Discard()
		response.RenderValidation(w, errs)
		return false
	}
	if _, err := e.Flush(ctx); err != nil {
		e.Discard()
		response.RenderError(w, err)
		return false
	}
	// before hooks may have rewritten fields into invalid values
	if errs := e.GetErrors(); errs.HasErrors() {
		e.Discard()
		response.RenderValidation(w, errs)
		return false
	}
	return true
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	e, err := h.find(r)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := e.Delete(r.Context()); err != nil {
		response.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := h.find(r)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	key := chi.URLParam(r, "link")
	d, err := e.Descriptor(key)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	if d.Cardinality == relationships.Many {
		coll, err := e.Many(ctx, key)
		if err != nil {
			response.RenderError(w, err)
			return
		}
		filter, limit, err := parseQuery(r.URL.Query())
		if err != nil {
			response.RenderBadRequest(w, err.Error())
			return
		}
		for field, value := range filter {
			coll = coll.Where(field, value)
		}
		h.renderCollection(ctx, w, coll.Take(limit))
		return
	}

	target, err := e.One(ctx, key)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if target == nil {
		response.RenderError(w, fmt.Errorf("%s %v %s: %w", e.GetModel(), e.GetKey(), key, executor.ErrNotFound))
		return
	}
	h.renderEntity(ctx, w, http.StatusOK, target)
}
