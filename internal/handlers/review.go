package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/document"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/rut"
	"github.com/csg33k/mirecurso/internal/steps"
	"github.com/csg33k/mirecurso/internal/templates"
	"github.com/csg33k/mirecurso/internal/validation"
	"github.com/csg33k/mirecurso/internal/wizard"
)

// ── Review ────────────────────────────────────────────────────────────────────

func (h *Handler) reviewPage(w http.ResponseWriter, r *http.Request, st *wizard.Store, status int, msg string) {
	rv := steps.NewReview(st)
	if to, err := rv.Enter(); err != nil {
		redirect(w, r, stepHref(to))
		return
	}
	sum := rv.Summary()
	view := templates.ReviewView{
		Layout:    h.layout(st, domain.StepReview.Title(), domain.StepReview),
		Ready:     sum.Record != nil,
		Confirmed: sum.Confirmed,
		Sections:  reviewSections(sum.State),
		Error:     msg,
	}
	if sum.Record != nil {
		view.Checks = reviewChecks(sum)
		for _, d := range sum.Documents {
			view.Documents = append(view.Documents, d.Name)
		}
	}
	if !sum.ThresholdsCurrent {
		view.Warnings = append(view.Warnings,
			"Los montos legales usados para evaluar su caso corresponden al último periodo publicado ("+
				sum.Thresholds.Statute+"). Verifique que sigan vigentes.")
	}
	renderStatus(w, r, status, templates.Review(view))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	ack := r.PostForm.Get(validation.FieldConfirm) != ""
	err := steps.NewReview(st).Confirm(ack)
	switch {
	case err == nil:
		redirect(w, r, stepHref(domain.StepOutput))
	case errors.Is(err, steps.ErrConfirmationRequired):
		h.reviewPage(w, r, st, http.StatusUnprocessableEntity, "Debe confirmar que los datos son correctos para continuar.")
	case errors.Is(err, wizard.ErrStepNotAccessible):
		redirect(w, r, stepHref(st.FurthestAccessibleStep()))
	default:
		h.fail(w, r, http.StatusInternalServerError, "No pudimos registrar su confirmación.", stepHref(domain.StepReview), err)
	}
}

func reviewSections(s domain.WizardState) []templates.ReviewSection {
	var out []templates.ReviewSection
	if p := s.Personal; p != nil {
		rows := []templates.Row{
			{Label: "Nombre", Value: p.FullName},
			{Label: "RUT", Value: p.RUT},
			{Label: "Fecha de nacimiento", Value: document.LongDate(p.BirthDate)},
			{Label: "Edad", Value: strconv.Itoa(p.Age) + " años"},
			{Label: "Nacionalidad", Value: p.Nationality},
			{Label: "Estado civil", Value: capitalize(p.MaritalStatus.Label())},
			{Label: "Ocupación", Value: p.Occupation},
			{Label: "Domicilio", Value: address(p.Domicile)},
		}
		if p.Phone != "" {
			rows = append(rows, templates.Row{Label: "Teléfono", Value: p.Phone})
		}
		if p.Email != "" {
			rows = append(rows, templates.Row{Label: "Correo", Value: p.Email})
		}
		out = append(out, section(domain.StepIdentity, rows))
	}
	if p := s.Property; p != nil {
		rows := []templates.Row{
			{Label: "Dirección", Value: address(p.Location)},
			{Label: "Rol de avalúo", Value: p.RollID},
			{Label: "Avalúo fiscal", Value: document.Money(p.Appraisal)},
			{Label: "Propiedad", Value: capitalize(p.Ownership.Label())},
			{Label: "Uso habitacional", Value: yesNoLabel(p.Residential)},
		}
		if reg := p.Registry; reg != nil {
			rows = append(rows, templates.Row{
				Label: "Inscripción",
				Value: fmt.Sprintf("Fojas %s N° %s del año %d", reg.Fojas, reg.Number, reg.Year),
			})
		}
		out = append(out, section(domain.StepProperty, rows))
	}
	if e := s.Economic; e != nil {
		sources := make([]string, 0, len(e.Sources))
		for _, src := range e.Sources {
			sources = append(sources, src.Label())
		}
		rows := []templates.Row{
			{Label: "Ingreso mensual", Value: document.Money(e.MonthlyIncome)},
			{Label: "Ingreso anual", Value: document.Money(e.AnnualIncome)},
			{Label: "Fuentes", Value: capitalize(strings.Join(sources, ", "))},
			{Label: "Registro Social de Hogares", Value: registryLabel(e)},
			{Label: "Otros inmuebles", Value: yesNoLabel(e.OwnsOtherProperties)},
			{Label: "Beneficio actual", Value: capitalize(e.CurrentBenefit.Label())},
		}
		if e.OtherDescription != "" {
			rows = append(rows, templates.Row{Label: "Otros ingresos", Value: e.OtherDescription})
		}
		out = append(out, section(domain.StepEconomics, rows))
	}
	if c := s.Contributions; c != nil {
		rows := []templates.Row{
			{Label: "Cuota trimestral", Value: document.Money(c.QuarterlyAmount)},
			{Label: "Total anual", Value: document.Money(c.AnnualAmount)},
			{Label: "Porcentaje de sus ingresos", Value: document.Percent(c.IncomePercentage) + "%"},
		}
		for _, ch := range c.Charges {
			rows = append(rows, templates.Row{
				Label: "Giro N° " + ch.ID,
				Value: document.Money(ch.Amount) + " (" + document.ShortDate(ch.Date) + ")",
			})
		}
		out = append(out, section(domain.StepContributions, rows))
	}
	if p := s.Prior; p != nil {
		rows := []templates.Row{{Label: "Solicitud al SII", Value: yesNoLabel(p.FiledRequest)}}
		if p.RequestDate != nil {
			rows = append(rows, templates.Row{Label: "Fecha de solicitud", Value: document.LongDate(*p.RequestDate)})
		}
		if p.ReceivedDenial {
			rows = append(rows, templates.Row{Label: "Resolución", Value: "N° " + p.ResolutionNumber})
			if p.DenialDate != nil {
				rows = append(rows, templates.Row{Label: "Fecha de resolución", Value: document.LongDate(*p.DenialDate)})
			}
		}
		out = append(out, section(domain.StepPrior, rows))
	}
	return out
}

func section(step domain.Step, rows []templates.Row) templates.ReviewSection {
	return templates.ReviewSection{Title: step.Title(), EditHref: stepHref(step), Rows: rows}
}

func reviewChecks(sum steps.Summary) []templates.Check {
	v, t := sum.Validations, sum.Thresholds
	checks := []templates.Check{
		{Label: fmt.Sprintf("Tiene %d años o más", t.MinimumAge), OK: v.MeetsAge},
		{Label: "El inmueble es su vivienda", OK: v.IsResidentialUse},
		{
			Label:  "Las contribuciones superan el " + t.DisproportionatePercent.String() + "% de sus ingresos",
			OK:     v.BurdenDisproportionate,
			Detail: document.Percent(sum.Record.Contributions.IncomePercentage) + "% de sus ingresos anuales",
		},
		{
			Label:  "Sus ingresos permiten acceder a un beneficio",
			OK:     v.EligibilityTier != domain.TierNone,
			Detail: tierLabel(v.EligibilityTier),
		},
	}
	if v.ExceedsAppraisalCap {
		checks = append(checks, templates.Check{
			Label:  "El avalúo supera el tope legal",
			OK:     true,
			Detail: "Se invoca el precedente que declara este requisito no esencial",
		})
	}
	if v.DaysSinceDenial >= 0 {
		checks = append(checks, templates.Check{
			Label:  fmt.Sprintf("Está dentro del plazo de %d días desde el rechazo", t.FilingWindowDays),
			OK:     v.WithinFilingWindow,
			Detail: fmt.Sprintf("Han pasado %d días", v.DaysSinceDenial),
		})
	}
	return checks
}

func tierLabel(t domain.Tier) string {
	switch t {
	case domain.TierFull:
		return "Exención total"
	case domain.TierPartial:
		return "Rebaja del 50%"
	}
	return "Sus ingresos superan los límites legales"
}

func registryLabel(e *domain.EconomicInfo) string {
	switch e.Registry {
	case domain.RegistryYes:
		return fmt.Sprintf("Sí, tramo %d%%", e.RegistryTier)
	case domain.RegistryNo:
		return "No"
	}
	return "No lo sabe"
}

func yesNoLabel(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

func address(a domain.Address) string {
	return a.Street + ", " + a.Commune + ", Región " + a.Region
}

// ── Output ────────────────────────────────────────────────────────────────────

// generate builds the document, redirecting when the case is not ready.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request, st *wizard.Store) (*document.Document, domain.CaseRecord, bool) {
	out := steps.NewOutput(st)
	if to, err := out.Enter(); err != nil {
		redirect(w, r, stepHref(to))
		return nil, domain.CaseRecord{}, false
	}
	doc, rec, err := out.Generate()
	switch {
	case err == nil:
		return doc, rec, true
	case errors.Is(err, steps.ErrReviewRequired), errors.Is(err, wizard.ErrIncomplete):
		redirect(w, r, stepHref(st.FurthestAccessibleStep()))
	default:
		h.fail(w, r, http.StatusInternalServerError, "No pudimos generar el documento.", r.URL.Path, err)
	}
	return nil, domain.CaseRecord{}, false
}

func (h *Handler) outputPage(w http.ResponseWriter, r *http.Request, st *wizard.Store) {
	doc, rec, ok := h.generate(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := document.RenderHTML(&buf, doc); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "No pudimos mostrar el documento.", r.URL.Path, err)
		return
	}
	render(w, r, templates.Output(templates.OutputView{
		Layout:      h.layout(st, domain.StepOutput.Title(), domain.StepOutput),
		Preview:     template.HTML(buf.String()),
		GeneratedAt: document.LongDate(rec.GeneratedAt) + " a las " + rec.GeneratedAt.Format("15:04"),
		TextHref:    "/formulario/documento.txt",
		PDFHref:     "/formulario/documento.pdf",
		PrintHref:   "/formulario/documento",
	}))
}

func (h *Handler) printDocument(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	doc, _, ok := h.generate(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := document.RenderHTML(&buf, doc); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "No pudimos mostrar el documento.", r.URL.Path, err)
		return
	}
	render(w, r, templates.Document(templates.DocumentView{Title: doc.Title, Body: template.HTML(buf.String())}))
}

func (h *Handler) downloadText(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	doc, rec, ok := h.generate(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := document.RenderText(&buf, doc); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "No pudimos generar el archivo de texto.", r.URL.Path, err)
		return
	}
	attach(w, "text/plain; charset=utf-8", filename(rec, ".txt"), buf.Bytes())
}

func (h *Handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Store(w, r)
	doc, rec, ok := h.generate(w, r, st)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.pdf.Render(r.Context(), doc, &buf); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "No pudimos generar el PDF. Sus datos siguen guardados; intente nuevamente.", r.URL.Path, err)
		return
	}
	h.log.Info("document generated",
		zap.String("format", h.pdf.Extension()),
		zap.Int("bytes", buf.Len()),
	)
	attach(w, h.pdf.ContentType(), filename(rec, h.pdf.Extension()), buf.Bytes())
}

func attach(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Write(body)
}

func filename(rec domain.CaseRecord, ext string) string {
	day := rec.AsOf
	if day.IsZero() {
		day = time.Now()
	}
	return fmt.Sprintf("recurso_proteccion_%s_%s%s", rut.Clean(rec.Personal.RUT), day.Format("20060102"), ext)
}
