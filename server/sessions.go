package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cyp0633/recuredit/editor"
	"github.com/cyp0633/recuredit/internal/logging"
	"github.com/cyp0633/recuredit/server/auth"
)

// ownerContext makes the authenticated user, if any, the owner of the sessions
// the request opens or touches
func ownerContext(req *http.Request) context.Context {
	ctx := req.Context()
	if p := auth.GetPrincipalFromContext(ctx); p != nil {
		ctx = editor.WithOwner(ctx, p.ID)
	}
	return ctx
}

func sessionContext(req *http.Request) (context.Context, string) {
	id := req.PathValue("id")
	return logging.AppendCtx(ownerContext(req), slog.String("session_id", id)), id
}

// handleOpen handles POST /sessions
func (r *Router) handleOpen(w http.ResponseWriter, req *http.Request) {
	ctx := ownerContext(req)

	var body openRequest
	if err := decode(req, &body); err != nil {
		r.writeError(ctx, w, err)
		return
	}

	s, err := r.editor.Open(ctx, body.toEditor())
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.respondCreated(ctx, w, s.ID)
}

// handleOpenObject handles POST /users/{user}/objects/{object}/sessions
func (r *Router) handleOpenObject(w http.ResponseWriter, req *http.Request) {
	userID, objectID := req.PathValue("user"), req.PathValue("object")
	ctx := logging.AppendCtx(ownerContext(req), slog.String("user_id", userID))
	ctx = logging.AppendCtx(ctx, slog.String("object_id", objectID))

	var body openRequest
	if err := decode(req, &body); err != nil {
		r.writeError(ctx, w, err)
		return
	}

	s, err := r.editor.OpenObject(ctx, userID, objectID, body.toEditor())
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.respondCreated(ctx, w, s.ID)
}

func (r *Router) respondCreated(ctx context.Context, w http.ResponseWriter, id string) {
	v, err := r.editor.Expand(ctx, id)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+id)
	r.writeJSON(ctx, w, http.StatusCreated, newViewResponse(v))
}

// handleExpand handles GET /sessions/{id}
func (r *Router) handleExpand(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	v, err := r.editor.Expand(ctx, id)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.writeJSON(ctx, w, http.StatusOK, newViewResponse(v))
}

// handleShowMore handles POST /sessions/{id}/more
func (r *Router) handleShowMore(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	v, err := r.editor.ShowMore(ctx, id)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.writeJSON(ctx, w, http.StatusOK, newViewResponse(v))
}

// handleToggle handles POST /sessions/{id}/toggle
func (r *Router) handleToggle(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	var body indicesRequest
	if err := decode(req, &body); err != nil {
		r.writeError(ctx, w, err)
		return
	}

	v, err := r.editor.Toggle(ctx, id, body.Indices...)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.writeJSON(ctx, w, http.StatusOK, newViewResponse(v))
}

// handleSelect handles POST /sessions/{id}/select
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	var body indicesRequest
	if err := decode(req, &body); err != nil {
		r.writeError(ctx, w, err)
		return
	}

	v, err := r.editor.Select(ctx, id, body.Indices)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.writeJSON(ctx, w, http.StatusOK, newViewResponse(v))
}

// handleSubmit handles POST /sessions/{id}/submit
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	text, err := r.editor.Submit(ctx, id)
	if err != nil {
		r.writeError(ctx, w, err)
		return
	}
	r.writeJSON(ctx, w, http.StatusOK, submitResponse{Rule: text})
}

// handleClose handles DELETE /sessions/{id}
func (r *Router) handleClose(w http.ResponseWriter, req *http.Request) {
	ctx, id := sessionContext(req)

	if err := r.editor.Close(ctx, id); err != nil {
		r.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
