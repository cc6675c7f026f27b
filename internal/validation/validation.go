// Package validation turns raw step drafts into typed, normalized domain
// values. Every rule returns field-scoped Spanish messages; nothing here
// panics or has side effects.
package validation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/csg33k/mirecurso/internal/calc"
	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/rut"
)

const (
	minAppraisal    = 1_000_000
	maxAppraisal    = 10_000_000_000
	maxIncome       = 100_000_000
	maxAmount       = 100_000_000
	earliestRegYear = 1900
	oldestPlausible = 120
)

const (
	msgRequired      = "Este campo es obligatorio"
	msgChoose        = "Seleccione una opción"
	msgInvalidDate   = "Ingrese una fecha válida (AAAA-MM-DD)"
	msgFutureDate    = "La fecha no puede ser futura"
	msgInvalidAmount = "Ingrese un monto válido, solo números"
)

// Rules validates drafts against a reference set on a given date.
type Rules struct {
	Ref  *reference.Data
	AsOf time.Time
	// Domicile is the applicant's validated address, used when the property
	// is declared to be the same place.
	Domicile *domain.Address
}

func (r Rules) minimumAge() int {
	t, _ := r.Ref.ThresholdsFor(r.AsOf)
	if t.MinimumAge > 0 {
		return t.MinimumAge
	}
	return 60
}

// Step validates the full draft of step and returns the data that completes it.
func (r Rules) Step(step domain.Step, d domain.Draft) (domain.StepData, error) {
	switch step {
	case domain.StepIdentity:
		return r.Personal(d)
	case domain.StepProperty:
		return r.Property(d)
	case domain.StepEconomics:
		return r.Economic(d)
	case domain.StepContributions:
		return r.Contributions(d)
	case domain.StepPrior:
		return r.Prior(d)
	}
	return nil, fmt.Errorf("validation: step %d has no form", step)
}

// Partial validates only fields of step's draft. It is used to gate sub-step
// advancement; cross-field rules report on the dependent field, so they only
// block when that field is visible.
func (r Rules) Partial(step domain.Step, d domain.Draft, fields []string) Errors {
	_, err := r.Step(step, d)
	return AsErrors(err).Only(fields)
}

// ── Identity ──────────────────────────────────────────────────────────────────

func (r Rules) Personal(d domain.Draft) (domain.PersonalInfo, error) {
	var errs Errors
	p := domain.PersonalInfo{
		FullName:      collapse(d.Get(FieldFullName)),
		Nationality:   collapse(d.Get(FieldNationality)),
		MaritalStatus: domain.MaritalStatus(strings.TrimSpace(d.Get(FieldMaritalStatus))),
		Occupation:    collapse(d.Get(FieldOccupation)),
		Phone:         strings.TrimSpace(d.Get(FieldPhone)),
		Email:         strings.ToLower(strings.TrimSpace(d.Get(FieldEmail))),
	}
	if p.Nationality == "" {
		p.Nationality = domain.DefaultNationality
	}

	switch n := runeLen(p.FullName); {
	case n == 0:
		errs.add(FieldFullName, msgRequired)
	case n < 5:
		errs.add(FieldFullName, "El nombre debe tener al menos 5 caracteres")
	case n > 100:
		errs.add(FieldFullName, "El nombre no puede superar 100 caracteres")
	}

	switch raw := d.Get(FieldRUT); {
	case strings.TrimSpace(raw) == "":
		errs.add(FieldRUT, msgRequired)
	case !rut.Valid(raw):
		errs.add(FieldRUT, "RUT inválido, revise el número y el dígito verificador")
	default:
		p.RUT = rut.Format(raw)
	}

	switch raw := d.Get(FieldBirthDate); {
	case strings.TrimSpace(raw) == "":
		errs.add(FieldBirthDate, msgRequired)
	default:
		birth, ok := parseDate(raw)
		if !ok {
			errs.add(FieldBirthDate, msgInvalidDate)
			break
		}
		p.BirthDate = birth
		p.Age = calc.Age(birth, r.AsOf)
		switch minAge := r.minimumAge(); {
		case birth.After(calc.DateOf(r.AsOf)):
			errs.add(FieldBirthDate, msgFutureDate)
		case p.Age > oldestPlausible:
			errs.add(FieldBirthDate, "Revise la fecha de nacimiento")
		case p.Age < minAge:
			errs.add(FieldBirthDate, fmt.Sprintf("Debe tener al menos %d años para presentar este recurso", minAge))
		}
	}

	if p.MaritalStatus == "" {
		errs.add(FieldMaritalStatus, msgChoose)
	} else if !slices.Contains(domain.MaritalStatuses, p.MaritalStatus) {
		errs.add(FieldMaritalStatus, "Estado civil no reconocido")
	}

	switch n := runeLen(p.Occupation); {
	case n == 0:
		errs.add(FieldOccupation, msgRequired)
	case n < 2:
		errs.add(FieldOccupation, "La profesión u oficio debe tener al menos 2 caracteres")
	case n > 100:
		errs.add(FieldOccupation, "La profesión u oficio no puede superar 100 caracteres")
	}

	p.Domicile = r.address(d, &errs)

	if p.Phone != "" && !validPhone(p.Phone) {
		errs.add(FieldPhone, "Ingrese un teléfono válido, entre 8 y 12 dígitos")
	}
	if p.Email != "" && !validEmail(p.Email) {
		errs.add(FieldEmail, "Ingrese un correo electrónico válido")
	}
	return p, errs.err()
}

// address validates the street/region/commune triple shared by identity and property.
func (r Rules) address(d domain.Draft, errs *Errors) domain.Address {
	a := domain.Address{
		Street:  collapse(d.Get(FieldAddress)),
		Region:  strings.TrimSpace(d.Get(FieldRegion)),
		Commune: strings.TrimSpace(d.Get(FieldCommune)),
	}
	switch n := runeLen(a.Street); {
	case n == 0:
		errs.add(FieldAddress, msgRequired)
	case n < 10:
		errs.add(FieldAddress, "La dirección debe tener al menos 10 caracteres, incluya calle y número")
	case n > 200:
		errs.add(FieldAddress, "La dirección no puede superar 200 caracteres")
	}
	switch {
	case a.Region == "":
		errs.add(FieldRegion, msgChoose)
	case !r.Ref.HasRegion(a.Region):
		errs.add(FieldRegion, "Región no reconocida")
	}
	switch {
	case a.Commune == "":
		errs.add(FieldCommune, msgChoose)
	case r.Ref.HasRegion(a.Region) && !r.Ref.HasCommune(a.Region, a.Commune):
		errs.add(FieldCommune, "La comuna no pertenece a la región seleccionada")
	}
	return a
}

// ── Property ──────────────────────────────────────────────────────────────────

func (r Rules) Property(d domain.Draft) (domain.PropertyInfo, error) {
	var errs Errors
	p := domain.PropertyInfo{
		RollID: strings.TrimSpace(d.Get(FieldRollID)),
	}

	same, _ := parseBool(d.Get(FieldSameAsDomicile))
	if same && r.Domicile != nil {
		p.SameAsDomicile = true
		p.Location = *r.Domicile
	} else {
		p.Location = r.address(d, &errs)
	}

	switch {
	case p.RollID == "":
		errs.add(FieldRollID, msgRequired)
	case !rollPattern.MatchString(p.RollID):
		errs.add(FieldRollID, "El rol debe tener el formato 12345-12345")
	}

	switch raw := d.Get(FieldAppraisal); {
	case strings.TrimSpace(raw) == "":
		errs.add(FieldAppraisal, msgRequired)
	default:
		v, ok := parseAmount(raw)
		switch {
		case !ok:
			errs.add(FieldAppraisal, msgInvalidAmount)
		case v < minAppraisal:
			errs.add(FieldAppraisal, "El avalúo fiscal debe ser de al menos $1.000.000")
		case v > maxAppraisal:
			errs.add(FieldAppraisal, "El avalúo fiscal ingresado es demasiado alto, revíselo")
		default:
			p.Appraisal = v
		}
	}

	p.Registry = r.registryDetails(d, &errs)

	p.Ownership = domain.Ownership(strings.TrimSpace(d.Get(FieldOwnership)))
	if p.Ownership == "" {
		errs.add(FieldOwnership, msgChoose)
	} else if !slices.Contains(domain.Ownerships, p.Ownership) {
		errs.add(FieldOwnership, "Tipo de propiedad no reconocido")
	}

	if v, ok := parseBool(d.Get(FieldResidential)); ok {
		p.Residential = v
	} else {
		errs.add(FieldResidential, msgChoose)
	}
	return p, errs.err()
}

// registryDetails is optional as a whole; once any part is given, fojas,
// number and year are required.
func (r Rules) registryDetails(d domain.Draft, errs *Errors) *domain.RegistryDetails {
	reg := domain.RegistryDetails{
		Fojas:       strings.TrimSpace(d.Get(FieldFojas)),
		Number:      strings.TrimSpace(d.Get(FieldRegistryNumber)),
		Conservator: collapse(d.Get(FieldConservator)),
	}
	rawYear := strings.TrimSpace(d.Get(FieldRegistryYear))
	if reg.Fojas == "" && reg.Number == "" && rawYear == "" && reg.Conservator == "" {
		return nil
	}
	if reg.Fojas == "" {
		errs.add(FieldFojas, "Indique las fojas de la inscripción")
	}
	if reg.Number == "" {
		errs.add(FieldRegistryNumber, "Indique el número de la inscripción")
	}
	year, err := strconv.Atoi(rawYear)
	switch {
	case rawYear == "":
		errs.add(FieldRegistryYear, "Indique el año de la inscripción")
	case err != nil || year < earliestRegYear || year > r.AsOf.Year():
		errs.add(FieldRegistryYear, fmt.Sprintf("El año debe estar entre %d y %d", earliestRegYear, r.AsOf.Year()))
	default:
		reg.Year = year
	}
	return &reg
}

// ── Economics ─────────────────────────────────────────────────────────────────

func (r Rules) Economic(d domain.Draft) (domain.EconomicInfo, error) {
	var errs Errors
	e := domain.EconomicInfo{
		OtherDescription: collapse(d.Get(FieldOtherDescription)),
		Registry:         domain.RegistryStatus(strings.TrimSpace(d.Get(FieldRegistry))),
		CurrentBenefit:   domain.Benefit(strings.TrimSpace(d.Get(FieldCurrentBenefit))),
	}

	switch raw := d.Get(FieldMonthlyIncome); {
	case strings.TrimSpace(raw) == "":
		errs.add(FieldMonthlyIncome, msgRequired)
	default:
		v, ok := parseAmount(raw)
		switch {
		case !ok:
			errs.add(FieldMonthlyIncome, msgInvalidAmount)
		case v > maxIncome:
			errs.add(FieldMonthlyIncome, "El ingreso ingresado es demasiado alto, revíselo")
		default:
			e.MonthlyIncome = v
			e.AnnualIncome = calc.AnnualFromMonthly(v)
		}
	}

	for _, raw := range d.Values(FieldSources) {
		s := domain.IncomeSource(strings.TrimSpace(raw))
		if s == "" || slices.Contains(e.Sources, s) {
			continue
		}
		if !slices.Contains(domain.IncomeSources, s) {
			errs.add(FieldSources, "Fuente de ingresos no reconocida")
			continue
		}
		e.Sources = append(e.Sources, s)
	}
	if len(e.Sources) == 0 && errs.For(FieldSources) == "" {
		errs.add(FieldSources, "Seleccione al menos una fuente de ingresos")
	}
	if e.HasSource(domain.SourceOther) {
		switch n := runeLen(e.OtherDescription); {
		case n == 0:
			errs.add(FieldOtherDescription, "Describa sus otros ingresos")
		case n > 200:
			errs.add(FieldOtherDescription, "La descripción no puede superar 200 caracteres")
		}
	} else {
		e.OtherDescription = ""
	}

	switch {
	case e.Registry == "":
		errs.add(FieldRegistry, msgChoose)
	case !slices.Contains(domain.RegistryStatuses, e.Registry):
		errs.add(FieldRegistry, "Opción no reconocida")
	case e.Registry == domain.RegistryYes:
		raw := strings.TrimSpace(strings.TrimSuffix(d.Get(FieldRegistryTier), "%"))
		tier, err := strconv.Atoi(raw)
		switch {
		case raw == "":
			errs.add(FieldRegistryTier, "Indique su tramo del Registro Social de Hogares")
		case err != nil || !slices.Contains(domain.RegistryTiers, tier):
			errs.add(FieldRegistryTier, "Tramo no reconocido")
		default:
			e.RegistryTier = tier
		}
	}

	if v, ok := parseBool(d.Get(FieldOwnsOtherProperties)); ok {
		e.OwnsOtherProperties = v
	} else {
		errs.add(FieldOwnsOtherProperties, msgChoose)
	}

	if e.CurrentBenefit == "" {
		errs.add(FieldCurrentBenefit, msgChoose)
	} else if !slices.Contains(domain.Benefits, e.CurrentBenefit) {
		errs.add(FieldCurrentBenefit, "Opción no reconocida")
	}
	return e, errs.err()
}

// ── Contributions ─────────────────────────────────────────────────────────────

func (r Rules) Contributions(d domain.Draft) (domain.ContributionsInfo, error) {
	var errs Errors
	var c domain.ContributionsInfo

	switch raw := d.Get(FieldQuarterlyAmount); {
	case strings.TrimSpace(raw) == "":
		errs.add(FieldQuarterlyAmount, msgRequired)
	default:
		v, ok := parseAmount(raw)
		switch {
		case !ok:
			errs.add(FieldQuarterlyAmount, msgInvalidAmount)
		case v < 1:
			errs.add(FieldQuarterlyAmount, "El monto debe ser mayor a cero")
		case v > maxAmount:
			errs.add(FieldQuarterlyAmount, "El monto ingresado es demasiado alto, revíselo")
		default:
			c.QuarterlyAmount = v
			c.AnnualAmount = calc.AnnualFromQuarterly(v)
		}
	}

	pending, ok := parseBool(d.Get(FieldHasPendingCharges))
	if !ok {
		errs.add(FieldHasPendingCharges, msgChoose)
		return c, errs.err()
	}
	c.HasPendingCharges = pending
	if !pending {
		return c, errs.err()
	}

	ids, dates, amounts := d.Values(FieldChargeID), d.Values(FieldChargeDate), d.Values(FieldChargeAmount)
	rows := max(len(ids), len(dates), len(amounts))
	at := func(vs []string, i int) string {
		if i < len(vs) {
			return strings.TrimSpace(vs[i])
		}
		return ""
	}
	for i := range rows {
		id, rawDate, rawAmount := at(ids, i), at(dates, i), at(amounts, i)
		if id == "" && rawDate == "" && rawAmount == "" {
			continue
		}
		n := len(c.Charges)
		field := func(name string) string { return fmt.Sprintf("%s.%d.%s", FieldCharges, n, name) }
		ch := domain.Charge{ID: id}
		if id == "" {
			errs.add(field("id"), "Indique el número de giro")
		}
		if date, ok := parseDate(rawDate); !ok {
			errs.add(field("date"), msgInvalidDate)
		} else if date.After(calc.DateOf(r.AsOf)) {
			errs.add(field("date"), msgFutureDate)
		} else {
			ch.Date = date
		}
		if v, ok := parseAmount(rawAmount); !ok || v < 1 {
			errs.add(field("amount"), "El monto del giro debe ser mayor a cero")
		} else {
			ch.Amount = v
		}
		c.Charges = append(c.Charges, ch)
	}
	if len(c.Charges) == 0 {
		errs.add(FieldCharges, "Agregue al menos un giro a impugnar")
	}
	return c, errs.err()
}

// ── Prior proceeding ──────────────────────────────────────────────────────────

func (r Rules) Prior(d domain.Draft) (domain.PriorProceeding, error) {
	var errs Errors
	var p domain.PriorProceeding

	filed, ok := parseBool(d.Get(FieldFiledRequest))
	if !ok {
		errs.add(FieldFiledRequest, msgChoose)
		return p, errs.err()
	}
	p.FiledRequest = filed
	if !filed {
		if denied, _ := parseBool(d.Get(FieldReceivedDenial)); denied {
			errs.add(FieldReceivedDenial, "Solo puede haber un rechazo si presentó una solicitud previa")
		}
		return p, errs.err()
	}

	p.RequestDate = r.pastDate(d, FieldRequestDate, &errs)

	denied, ok := parseBool(d.Get(FieldReceivedDenial))
	if !ok {
		errs.add(FieldReceivedDenial, msgChoose)
		return p, errs.err()
	}
	p.ReceivedDenial = denied
	if !denied {
		return p, errs.err()
	}
	p.ResolutionNumber = collapse(d.Get(FieldResolutionNumber))
	if p.ResolutionNumber == "" {
		errs.add(FieldResolutionNumber, "Indique el número de la resolución")
	}
	p.DenialDate = r.pastDate(d, FieldDenialDate, &errs)
	if p.RequestDate != nil && p.DenialDate != nil && p.DenialDate.Before(*p.RequestDate) {
		errs.add(FieldDenialDate, "La resolución no puede ser anterior a la solicitud")
	}
	return p, errs.err()
}

// pastDate parses a required date that must not lie after AsOf.
func (r Rules) pastDate(d domain.Draft, field string, errs *Errors) *time.Time {
	raw := d.Get(field)
	if strings.TrimSpace(raw) == "" {
		errs.add(field, msgRequired)
		return nil
	}
	t, ok := parseDate(raw)
	if !ok {
		errs.add(field, msgInvalidDate)
		return nil
	}
	if t.After(calc.DateOf(r.AsOf)) {
		errs.add(field, msgFutureDate)
		return nil
	}
	return &t
}
