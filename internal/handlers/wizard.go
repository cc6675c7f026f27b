package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/steps"
	"github.com/csg33k/mirecurso/internal/templates"
	"github.com/csg33k/mirecurso/internal/wizard"
)

// stepPage renders any step. Inaccessible steps redirect to the furthest
// one the applicant may open.
func (h *Handler) stepPage(w http.ResponseWriter, r *http.Request) {
	step, ok := pathStep(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	st := h.sessions.Store(w, r)
	switch step {
	case domain.StepReview:
		h.reviewPage(w, r, st, http.StatusOK, "")
		return
	case domain.StepOutput:
		h.outputPage(w, r, st)
		return
	}

	f, err := steps.NewForm(st, step)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if to, err := f.Enter(); err != nil {
		redirect(w, r, stepHref(to))
		return
	}
	sub, _ := strconv.Atoi(r.URL.Query().Get("sub"))
	f.SetCursor(sub)
	render(w, r, templates.Form(h.formView(st, f)))
}

// form resolves the posted form and restores its sub-step cursor. It writes
// the response itself when it returns false.
func (h *Handler) form(w http.ResponseWriter, r *http.Request) (*steps.Form, bool) {
	step, ok := pathStep(r)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	st := h.sessions.Store(w, r)
	f, err := steps.NewForm(st, step)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	if to, err := f.Enter(); err != nil {
		redirect(w, r, stepHref(to))
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return nil, false
	}
	sub, _ := strconv.Atoi(r.PostForm.Get("_sub"))
	f.SetCursor(sub)
	return f, true
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	f, ok := h.form(w, r)
	if !ok {
		return
	}
	f.Commit(r.PostForm)
	_, err := f.Next()
	h.afterAdvance(w, r, f, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	f, ok := h.form(w, r)
	if !ok {
		return
	}
	f.Commit(r.PostForm)
	h.afterAdvance(w, r, f, f.Submit())
}

func (h *Handler) afterAdvance(w http.ResponseWriter, r *http.Request, f *steps.Form, err error) {
	st := f.Store()
	switch {
	case err == nil && st.CurrentStep() != f.Step():
		redirect(w, r, stepHref(st.CurrentStep()))
	case err == nil:
		redirect(w, r, subHref(f.Step(), f.Cursor()))
	case len(f.Errors()) > 0:
		renderStatus(w, r, http.StatusUnprocessableEntity, templates.Form(h.formView(st, f)))
	case errors.Is(err, wizard.ErrStepNotAccessible):
		redirect(w, r, stepHref(st.FurthestAccessibleStep()))
	default:
		h.fail(w, r, http.StatusInternalServerError, "No pudimos guardar este paso.", subHref(f.Step(), f.Cursor()), err)
	}
}

// back keeps what was typed without validating it.
func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	f, ok := h.form(w, r)
	if !ok {
		return
	}
	f.Commit(r.PostForm)
	switch {
	case f.Back():
		redirect(w, r, subHref(f.Step(), f.Cursor()))
	case f.Step() > domain.StepIdentity:
		prev := f.Step() - 1
		redirect(w, r, subHref(prev, len(steps.SubSteps(prev))-1))
	default:
		redirect(w, r, stepHref(f.Step()))
	}
}

// commitField stores one widget's value as it changes and answers with the
// field's error message, empty when valid.
func (h *Handler) commitField(w http.ResponseWriter, r *http.Request) {
	step, ok := pathStep(r)
	if !ok || step > domain.StepPrior {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	field := r.Header.Get("HX-Trigger-Name")
	if field == "" {
		field = r.PostForm.Get("_campo")
	}
	if !acceptsField(step, field) {
		http.Error(w, "unknown field", 400)
		return
	}

	st := h.sessions.Store(w, r)
	if !st.IsStepAccessible(step) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	values := r.PostForm[field]
	st.CommitField(step, field, values...)

	msg := ""
	if strings.TrimSpace(strings.Join(values, "")) != "" {
		msg = st.Rules().Partial(step, st.Draft(step), []string{field}).For(field)
	}
	render(w, r, templates.FieldError(field, msg))
}

func acceptsField(step domain.Step, field string) bool {
	for _, sub := range steps.SubSteps(step) {
		if slices.Contains(sub.Fields, field) {
			return true
		}
	}
	return false
}

func (h *Handler) formView(st *wizard.Store, f *steps.Form) templates.FormView {
	cur := f.Current()
	sub, total := f.Progress()
	action := stepHref(f.Step())
	return templates.FormView{
		Layout:    h.layout(st, f.Step().Title(), f.Step()),
		Step:      f.Step(),
		StepTitle: f.Step().Title(),
		SubTitle:  cur.Title,
		Optional:  cur.Optional,
		Cursor:    f.Cursor(),
		Sub:       sub,
		SubTotal:  total,
		IsFirst:   f.IsFirst(),
		IsLast:    f.IsLast(),
		Fields:    buildFields(cur.Fields, f.Draft(), f.Errors(), h.ref, action+"/campo"),
		HasErrors: len(f.Errors()) > 0,
		Action:    action,
	}
}

func subHref(step domain.Step, cursor int) string {
	if cursor <= 0 {
		return stepHref(step)
	}
	return fmt.Sprintf("%s?sub=%d", stepHref(step), cursor)
}
