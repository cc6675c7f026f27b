package handlers

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/templates"
	v "github.com/csg33k/mirecurso/internal/validation"
)

// fieldMeta describes how a form field is shown. Options are filled in per
// request when they depend on reference data or other answers.
type fieldMeta struct {
	label, hint, kind, placeholder string
	options                        []templates.Option
	dictation                      bool
}

var yesNo = []templates.Option{{Value: "si", Label: "Sí"}, {Value: "no", Label: "No"}}

var fieldMetas = map[string]fieldMeta{
	v.FieldFullName:      {label: "Nombre completo", kind: templates.KindText, placeholder: "Como aparece en su cédula de identidad"},
	v.FieldRUT:           {label: "RUT", kind: templates.KindText, placeholder: "12.345.678-9"},
	v.FieldBirthDate:     {label: "Fecha de nacimiento", kind: templates.KindDate},
	v.FieldNationality:   {label: "Nacionalidad", kind: templates.KindText, placeholder: domain.DefaultNationality},
	v.FieldMaritalStatus: {label: "Estado civil", kind: templates.KindSelect, options: maritalOptions()},
	v.FieldOccupation:    {label: "Ocupación", hint: "Por ejemplo: jubilada, dueña de casa, comerciante", kind: templates.KindText, dictation: true},
	v.FieldAddress:       {label: "Calle, número y departamento", kind: templates.KindText, dictation: true},
	v.FieldRegion:        {label: "Región", kind: templates.KindSelect},
	v.FieldCommune:       {label: "Comuna", kind: templates.KindSelect},
	v.FieldPhone:         {label: "Teléfono", kind: templates.KindTel, placeholder: "+56 9 1234 5678"},
	v.FieldEmail:         {label: "Correo electrónico", kind: templates.KindEmail},

	v.FieldSameAsDomicile: {label: "¿El inmueble está en la misma dirección de su domicilio?", kind: templates.KindRadio, options: yesNo},
	v.FieldRollID:         {label: "Rol de avalúo", hint: "Aparece en el aviso de cobro de contribuciones", kind: templates.KindText, placeholder: "12345-67"},
	v.FieldAppraisal:      {label: "Avalúo fiscal", hint: "Monto en pesos del certificado de avalúo", kind: templates.KindMoney, placeholder: "$"},
	v.FieldFojas:          {label: "Fojas", hint: "Inscripción en el Conservador de Bienes Raíces (opcional)", kind: templates.KindText},
	v.FieldRegistryNumber: {label: "Número de inscripción", kind: templates.KindText},
	v.FieldRegistryYear:   {label: "Año de inscripción", kind: templates.KindText},
	v.FieldConservator:    {label: "Conservador de Bienes Raíces", kind: templates.KindText},
	v.FieldOwnership:      {label: "¿Quién es dueño del inmueble?", kind: templates.KindRadio, options: ownershipOptions()},
	v.FieldResidential:    {label: "¿El inmueble es su vivienda?", kind: templates.KindRadio, options: yesNo},

	v.FieldMonthlyIncome:       {label: "Ingreso mensual total", hint: "Sume todas sus pensiones y otros ingresos", kind: templates.KindMoney, placeholder: "$"},
	v.FieldSources:             {label: "Fuentes de sus ingresos", kind: templates.KindCheckboxes, options: sourceOptions()},
	v.FieldOtherDescription:    {label: "Describa sus otros ingresos", kind: templates.KindTextarea, dictation: true},
	v.FieldRegistry:            {label: "¿Está inscrito en el Registro Social de Hogares?", kind: templates.KindRadio, options: registryOptions()},
	v.FieldRegistryTier:        {label: "Tramo del Registro Social de Hogares", kind: templates.KindSelect, options: tierOptions()},
	v.FieldOwnsOtherProperties: {label: "¿Es dueño de otros inmuebles?", kind: templates.KindRadio, options: yesNo},
	v.FieldCurrentBenefit:      {label: "¿Recibe actualmente algún beneficio en sus contribuciones?", kind: templates.KindRadio, options: benefitOptions()},

	v.FieldQuarterlyAmount:   {label: "Monto de cada cuota trimestral", hint: "Lo encuentra en el aviso de cobro del SII o la Tesorería", kind: templates.KindMoney, placeholder: "$"},
	v.FieldHasPendingCharges: {label: "¿Tiene giros de contribuciones que quiera impugnar?", kind: templates.KindRadio, options: yesNo},
	v.FieldCharges:           {label: "Giros a impugnar", kind: templates.KindCharges},

	v.FieldFiledRequest:     {label: "¿Presentó una solicitud al SII por este cobro?", kind: templates.KindRadio, options: yesNo},
	v.FieldRequestDate:      {label: "Fecha de la solicitud", kind: templates.KindDate},
	v.FieldReceivedDenial:   {label: "¿El SII rechazó su solicitud?", kind: templates.KindRadio, options: yesNo},
	v.FieldResolutionNumber: {label: "Número de la resolución", kind: templates.KindText},
	v.FieldDenialDate:       {label: "Fecha de la resolución", kind: templates.KindDate},
}

func maritalOptions() []templates.Option {
	out := make([]templates.Option, 0, len(domain.MaritalStatuses))
	for _, m := range domain.MaritalStatuses {
		out = append(out, templates.Option{Value: string(m), Label: capitalize(m.Label())})
	}
	return out
}

func ownershipOptions() []templates.Option {
	out := make([]templates.Option, 0, len(domain.Ownerships))
	for _, o := range domain.Ownerships {
		out = append(out, templates.Option{Value: string(o), Label: capitalize(o.Label())})
	}
	return out
}

func sourceOptions() []templates.Option {
	out := make([]templates.Option, 0, len(domain.IncomeSources))
	for _, s := range domain.IncomeSources {
		out = append(out, templates.Option{Value: string(s), Label: capitalize(s.Label())})
	}
	return out
}

func registryOptions() []templates.Option {
	return []templates.Option{
		{Value: string(domain.RegistryYes), Label: "Sí"},
		{Value: string(domain.RegistryNo), Label: "No"},
		{Value: string(domain.RegistryUnknown), Label: "No lo sé"},
	}
}

func tierOptions() []templates.Option {
	out := make([]templates.Option, 0, len(domain.RegistryTiers))
	for _, t := range domain.RegistryTiers {
		out = append(out, templates.Option{Value: strconv.Itoa(t), Label: fmt.Sprintf("%d%% más vulnerable", t)})
	}
	return out
}

func benefitOptions() []templates.Option {
	out := make([]templates.Option, 0, len(domain.Benefits))
	for _, b := range domain.Benefits {
		out = append(out, templates.Option{Value: string(b), Label: capitalize(b.Label())})
	}
	return out
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func stringOptions(values []string) []templates.Option {
	out := make([]templates.Option, 0, len(values))
	for _, s := range values {
		out = append(out, templates.Option{Value: s, Label: s})
	}
	return out
}

// buildFields turns the sub-step's field names into widgets carrying the
// draft's values and the current errors.
func buildFields(names []string, d domain.Draft, errs v.Errors, ref *reference.Data, endpoint string) []templates.Field {
	var out []templates.Field
	for _, name := range names {
		meta, ok := fieldMetas[name]
		if !ok {
			// charge columns are drawn by the charges widget
			continue
		}
		f := templates.Field{
			Name:        name,
			Label:       meta.label,
			Hint:        meta.hint,
			Kind:        meta.kind,
			Placeholder: meta.placeholder,
			Value:       d.Get(name),
			Error:       errs.For(name),
			Dictation:   meta.dictation,
			Endpoint:    endpoint,
		}
		opts := meta.options
		switch name {
		case v.FieldRegion:
			opts = stringOptions(ref.Regions())
		case v.FieldCommune:
			opts = stringOptions(ref.CommunesForRegion(d.Get(v.FieldRegion)))
			f.DependsOn = v.FieldRegion
		case v.FieldCharges:
			f.Rows = chargeRows(d, errs)
		}
		f.Options = selectOptions(opts, d.Values(name))
		out = append(out, f)
	}
	return out
}

func selectOptions(opts []templates.Option, chosen []string) []templates.Option {
	if len(opts) == 0 {
		return nil
	}
	out := slices.Clone(opts)
	for i := range out {
		out[i].Selected = slices.Contains(chosen, out[i].Value)
	}
	return out
}

// chargeRows rebuilds the charge table from its parallel columns. Blank rows
// are dropped so row i lines up with the "charges.i.*" errors, and one blank
// row is always offered at the end.
func chargeRows(d domain.Draft, errs v.Errors) []templates.ChargeRow {
	ids, dates, amounts := d.Values(v.FieldChargeID), d.Values(v.FieldChargeDate), d.Values(v.FieldChargeAmount)
	at := func(vs []string, i int) string {
		if i < len(vs) {
			return strings.TrimSpace(vs[i])
		}
		return ""
	}
	var rows []templates.ChargeRow
	for i := range max(len(ids), len(dates), len(amounts)) {
		row := templates.ChargeRow{ID: at(ids, i), Date: at(dates, i), Amount: at(amounts, i)}
		if row.ID == "" && row.Date == "" && row.Amount == "" {
			continue
		}
		n := len(rows)
		row.IDError = errs.For(fmt.Sprintf("%s.%d.id", v.FieldCharges, n))
		row.DateError = errs.For(fmt.Sprintf("%s.%d.date", v.FieldCharges, n))
		row.AmountError = errs.For(fmt.Sprintf("%s.%d.amount", v.FieldCharges, n))
		rows = append(rows, row)
	}
	return append(rows, templates.ChargeRow{})
}
