package templates_test

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/templates"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func layout(current domain.Step) templates.Layout {
	l := templates.Layout{Title: "Paso", Progress: 40}
	for s := domain.StepIdentity; s <= domain.StepOutput; s++ {
		l.Nav = append(l.Nav, templates.StepLink{
			Number: s, Title: s.Title(), Href: fmt.Sprintf("/formulario/paso/%d", s),
			Current: s == current, Complete: s < current, Accessible: s <= current,
		})
	}
	return l
}

func TestIndex(t *testing.T) {
	out := renderString(t, templates.Index(templates.IndexView{
		Layout:       templates.Layout{Title: "Inicio"},
		ContinueHref: "/formulario/paso/1",
		Requirements: []string{"Su cédula de identidad"},
	}))

	assert.Contains(t, out, "<title>")
	assert.Contains(t, out, "Comenzar")
	assert.Contains(t, out, "Su cédula de identidad")
	assert.NotContains(t, out, "Continuar donde quedé")
}

func TestFormFields(t *testing.T) {
	out := renderString(t, templates.Form(templates.FormView{
		Layout:    layout(domain.StepIdentity),
		Step:      domain.StepIdentity,
		StepTitle: "Datos personales",
		SubTitle:  "Domicilio",
		Cursor:    3,
		Sub:       4,
		SubTotal:  5,
		Action:    "/formulario/paso/1",
		HasErrors: true,
		Fields: []templates.Field{
			{Name: "address", Label: "Dirección", Kind: templates.KindText, Value: "Av. Grecia <1234>", Endpoint: "/formulario/paso/1/campo"},
			{Name: "region", Label: "Región", Kind: templates.KindSelect, Endpoint: "/formulario/paso/1/campo", Options: []templates.Option{
				{Value: "Metropolitana", Label: "Metropolitana", Selected: true},
			}},
			{Name: "commune", Label: "Comuna", Kind: templates.KindSelect, DependsOn: "region", Error: "Seleccione una comuna", Endpoint: "/formulario/paso/1/campo"},
		},
	}))

	assert.Contains(t, out, "Parte 4 de 5")
	assert.Contains(t, out, `name="_sub" value="3"`)
	assert.Contains(t, out, `action="/formulario/paso/1/siguiente"`)
	assert.Contains(t, out, "Av. Grecia &lt;1234&gt;", "values are escaped")
	assert.Contains(t, out, `<option value="Metropolitana" selected>`)
	assert.Contains(t, out, `data-depends-on="region"`)
	assert.Contains(t, out, `id="err-commune" role="alert">Seleccione una comuna</div>`)
	assert.Contains(t, out, "Revise los campos marcados")
	assert.Contains(t, out, "Siguiente")
	assert.NotContains(t, out, "Guardar y continuar")
}

func TestFormLastSubStepSubmits(t *testing.T) {
	out := renderString(t, templates.Form(templates.FormView{
		Layout: layout(domain.StepContributions),
		Step:   domain.StepContributions,
		IsLast: true,
		Action: "/formulario/paso/4",
		Fields: []templates.Field{
			{Name: "has_pending_charges", Label: "¿Tiene giros pendientes?", Kind: templates.KindRadio, Endpoint: "/formulario/paso/4/campo",
				Options: []templates.Option{{Value: "si", Label: "Sí", Selected: true}, {Value: "no", Label: "No"}}},
			{Name: "charges", Label: "Giros", Kind: templates.KindCharges, Rows: []templates.ChargeRow{
				{ID: "123", Date: "2025-01-10", Amount: "95000", AmountError: "Monto inválido"},
				{},
			}},
		},
	}))

	assert.Contains(t, out, `formaction="/formulario/paso/4/enviar"`)
	assert.Contains(t, out, `hx-post="/formulario/paso/4/campo"`)
	assert.Contains(t, out, `value="si" checked`)
	assert.Contains(t, out, `name="charge_id" value="123"`)
	assert.Contains(t, out, "Monto inválido")
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte(`name="charge_amount"`)))
}

func TestReview(t *testing.T) {
	view := templates.ReviewView{
		Layout: layout(domain.StepReview),
		Ready:  true,
		Sections: []templates.ReviewSection{{
			Title: "Datos personales", EditHref: "/formulario/paso/1",
			Rows: []templates.Row{{Label: "Nombre", Value: "María Inés Soto Pérez"}},
		}},
		Checks:    []templates.Check{{Label: "Tiene 65 años o más", OK: true}},
		Documents: []string{"Copia de su cédula de identidad"},
		Error:     "Debe confirmar que los datos son correctos para continuar.",
	}

	out := renderString(t, templates.Review(view))
	assert.Contains(t, out, "María Inés Soto Pérez")
	assert.Contains(t, out, `action="/formulario/revision/confirmar"`)
	assert.Contains(t, out, "Debe confirmar")
	assert.Contains(t, out, "Copia de su cédula de identidad")

	view.Ready = false
	out = renderString(t, templates.Review(view))
	assert.NotContains(t, out, `action="/formulario/revision/confirmar"`)
	assert.Contains(t, out, "Complete todos los pasos anteriores")
}

func TestOutputEmbedsPreview(t *testing.T) {
	out := renderString(t, templates.Output(templates.OutputView{
		Layout:      layout(domain.StepOutput),
		Preview:     template.HTML(`<article class="recurso"><p>EN LO PRINCIPAL</p></article>`),
		GeneratedAt: "15 de marzo de 2025 a las 10:30",
		PDFHref:     "/formulario/documento.pdf",
		TextHref:    "/formulario/documento.txt",
		PrintHref:   "/formulario/documento",
	}))

	assert.Contains(t, out, `<article class="recurso"><p>EN LO PRINCIPAL</p></article>`)
	assert.Contains(t, out, "15 de marzo de 2025 a las 10:30")
	assert.Contains(t, out, `href="/formulario/documento.pdf"`)
}

func TestDocumentIsStandalone(t *testing.T) {
	out := renderString(t, templates.Document(templates.DocumentView{
		Title: "Recurso de protección",
		Body:  template.HTML("<p>cuerpo</p>"),
	}))

	assert.Contains(t, out, "window.print()")
	assert.Contains(t, out, "<p>cuerpo</p>")
	assert.NotContains(t, out, "progressbar")
}

func TestErrorPage(t *testing.T) {
	out := renderString(t, templates.Error(templates.ErrorView{
		Layout:    templates.Layout{Title: "Error"},
		Message:   "No pudimos generar el PDF.",
		RetryHref: "/formulario/documento.pdf",
	}))

	assert.Contains(t, out, "No pudimos generar el PDF.")
	assert.Contains(t, out, `<a class="button" href="/formulario/documento.pdf">Reintentar</a>`)
}

func TestFieldError(t *testing.T) {
	assert.Equal(t, `<div class="error" id="err-rut" role="alert">RUT inválido</div>`,
		renderString(t, templates.FieldError("rut", "RUT inválido")))
	assert.Equal(t, `<div class="error" id="err-rut" role="alert"></div>`,
		renderString(t, templates.FieldError("rut", "")))
}
