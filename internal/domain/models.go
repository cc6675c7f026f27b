package domain

import (
	"slices"
	"time"
)

// SchemaVersion is written into every persisted WizardState. Bump it whenever
// the shape of the state changes; older payloads are purged on load.
const SchemaVersion = 2

// DefaultNationality is pre-filled for every applicant.
const DefaultNationality = "Chilena"

// ── Steps ─────────────────────────────────────────────────────────────────────

// Step is a 1-based wizard position.
type Step int

const (
	StepIdentity Step = iota + 1
	StepProperty
	StepEconomics
	StepContributions
	StepPrior
	StepReview
	StepOutput
)

// StepCount is the number of wizard steps.
const StepCount = 7

// RequiredForRecord lists the steps that must be complete before a CaseRecord
// can be assembled. Everything except the final confirmation and output.
var RequiredForRecord = []Step{StepIdentity, StepProperty, StepEconomics, StepContributions, StepPrior}

func (s Step) Valid() bool { return s >= StepIdentity && s <= StepOutput }

// Title is the Spanish heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepIdentity:
		return "Datos personales"
	case StepProperty:
		return "Datos de la propiedad"
	case StepEconomics:
		return "Situación económica"
	case StepContributions:
		return "Contribuciones"
	case StepPrior:
		return "Gestiones previas"
	case StepReview:
		return "Revisión"
	case StepOutput:
		return "Documento"
	}
	return ""
}

// ── Enumerations ──────────────────────────────────────────────────────────────
// Values are the wire codes used by forms and persisted state.

type MaritalStatus string

const (
	MaritalSingle     MaritalStatus = "soltero"
	MaritalMarried    MaritalStatus = "casado"
	MaritalWidowed    MaritalStatus = "viudo"
	MaritalDivorced   MaritalStatus = "divorciado"
	MaritalCivilUnion MaritalStatus = "conviviente_civil"
)

var MaritalStatuses = []MaritalStatus{MaritalSingle, MaritalMarried, MaritalWidowed, MaritalDivorced, MaritalCivilUnion}

func (m MaritalStatus) Label() string {
	switch m {
	case MaritalSingle:
		return "soltero(a)"
	case MaritalMarried:
		return "casado(a)"
	case MaritalWidowed:
		return "viudo(a)"
	case MaritalDivorced:
		return "divorciado(a)"
	case MaritalCivilUnion:
		return "conviviente civil"
	}
	return string(m)
}

type IncomeSource string

const (
	SourcePGU             IncomeSource = "pgu"
	SourceAFPPension      IncomeSource = "pension_afp"
	SourceSurvivorPension IncomeSource = "pension_sobrevivencia"
	SourceRent            IncomeSource = "arriendos"
	SourceOther           IncomeSource = "otros"
)

var IncomeSources = []IncomeSource{SourcePGU, SourceAFPPension, SourceSurvivorPension, SourceRent, SourceOther}

func (s IncomeSource) Label() string {
	switch s {
	case SourcePGU:
		return "Pensión Garantizada Universal"
	case SourceAFPPension:
		return "pensión de AFP"
	case SourceSurvivorPension:
		return "pensión de sobrevivencia"
	case SourceRent:
		return "arriendos"
	case SourceOther:
		return "otros ingresos"
	}
	return string(s)
}

type Ownership string

const (
	OwnershipSole       Ownership = "unico"
	OwnershipWithSpouse Ownership = "con_conyuge"
	OwnershipWithHeirs  Ownership = "con_hijos"
	OwnershipOther      Ownership = "otro"
)

var Ownerships = []Ownership{OwnershipSole, OwnershipWithSpouse, OwnershipWithHeirs, OwnershipOther}

func (o Ownership) Label() string {
	switch o {
	case OwnershipSole:
		return "propietario(a) único(a)"
	case OwnershipWithSpouse:
		return "copropietario(a) con su cónyuge"
	case OwnershipWithHeirs:
		return "copropietario(a) con sus hijos"
	case OwnershipOther:
		return "otra forma de propiedad"
	}
	return string(o)
}

// RegistryStatus is enrollment in the Registro Social de Hogares.
type RegistryStatus string

const (
	RegistryYes     RegistryStatus = "si"
	RegistryNo      RegistryStatus = "no"
	RegistryUnknown RegistryStatus = "no_se"
)

var RegistryStatuses = []RegistryStatus{RegistryYes, RegistryNo, RegistryUnknown}

// RegistryTiers are the accepted percentile tiers.
var RegistryTiers = []int{40, 50, 60, 70, 80, 90}

// Benefit is the exemption the applicant currently receives.
type Benefit string

const (
	BenefitNone    Benefit = "ninguno"
	BenefitPartial Benefit = "parcial_50"
	BenefitFull    Benefit = "total_100"
)

var Benefits = []Benefit{BenefitNone, BenefitPartial, BenefitFull}

func (b Benefit) Label() string {
	switch b {
	case BenefitNone:
		return "ningún beneficio"
	case BenefitPartial:
		return "rebaja del 50%"
	case BenefitFull:
		return "exención del 100%"
	}
	return string(b)
}

// Tier is the benefit an applicant qualifies for by income.
type Tier string

const (
	TierNone    Tier = "ninguna"
	TierPartial Tier = "parcial"
	TierFull    Tier = "total"
)

// ── Case data ─────────────────────────────────────────────────────────────────

type Address struct {
	Street  string `json:"street"`
	Region  string `json:"region"`
	Commune string `json:"commune"`
}

type PersonalInfo struct {
	FullName      string        `json:"full_name"`
	RUT           string        `json:"rut"` // display form, e.g. 12.345.678-5
	BirthDate     time.Time     `json:"birth_date"`
	Age           int           `json:"age"` // derived
	Nationality   string        `json:"nationality"`
	MaritalStatus MaritalStatus `json:"marital_status"`
	Occupation    string        `json:"occupation"`
	Domicile      Address       `json:"domicile"`
	Phone         string        `json:"phone,omitempty"`
	Email         string        `json:"email,omitempty"`
}

// RegistryDetails identifies the property's inscription at the Conservador de Bienes Raíces.
type RegistryDetails struct {
	Fojas       string `json:"fojas"`
	Number      string `json:"number"`
	Year        int    `json:"year"`
	Conservator string `json:"conservator,omitempty"`
}

type PropertyInfo struct {
	Location       Address          `json:"location"`
	SameAsDomicile bool             `json:"same_as_domicile"`
	RollID         string           `json:"roll_id"`   // NNNNN-NNNNN
	Appraisal      int64            `json:"appraisal"` // CLP
	Registry       *RegistryDetails `json:"registry,omitempty"`
	Ownership      Ownership        `json:"ownership"`
	Residential    bool             `json:"residential"`
}

type EconomicInfo struct {
	MonthlyIncome       int64          `json:"monthly_income"`
	AnnualIncome        int64          `json:"annual_income"` // derived
	Sources             []IncomeSource `json:"sources"`
	OtherDescription    string         `json:"other_description,omitempty"`
	Registry            RegistryStatus `json:"registry"`
	RegistryTier        int            `json:"registry_tier,omitempty"`
	OwnsOtherProperties bool           `json:"owns_other_properties"`
	CurrentBenefit      Benefit        `json:"current_benefit"`
}

func (e EconomicInfo) HasSource(s IncomeSource) bool { return slices.Contains(e.Sources, s) }

// Charge is a single billed installment (giro) being contested.
type Charge struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Amount int64     `json:"amount"`
}

type ContributionsInfo struct {
	QuarterlyAmount   int64    `json:"quarterly_amount"`
	AnnualAmount      int64    `json:"annual_amount"`     // derived
	IncomePercentage  float64  `json:"income_percentage"` // derived
	HasPendingCharges bool     `json:"has_pending_charges"`
	Charges           []Charge `json:"charges,omitempty"`
}

// ChargesTotal sums every contested charge.
func (c ContributionsInfo) ChargesTotal() int64 {
	var total int64
	for _, ch := range c.Charges {
		total += ch.Amount
	}
	return total
}

type PriorProceeding struct {
	FiledRequest     bool       `json:"filed_request"`
	RequestDate      *time.Time `json:"request_date,omitempty"`
	ReceivedDenial   bool       `json:"received_denial"`
	ResolutionNumber string     `json:"resolution_number,omitempty"`
	DenialDate       *time.Time `json:"denial_date,omitempty"`
}

// ReviewConfirmation records the applicant's explicit acknowledgment on the review step.
type ReviewConfirmation struct {
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// OutputReceipt marks the last step complete once a document was produced.
type OutputReceipt struct {
	GeneratedAt time.Time `json:"generated_at"`
}

// StepData is validated data that completes a step.
type StepData interface {
	StepNumber() Step
}

func (PersonalInfo) StepNumber() Step       { return StepIdentity }
func (PropertyInfo) StepNumber() Step       { return StepProperty }
func (EconomicInfo) StepNumber() Step       { return StepEconomics }
func (ContributionsInfo) StepNumber() Step  { return StepContributions }
func (PriorProceeding) StepNumber() Step    { return StepPrior }
func (ReviewConfirmation) StepNumber() Step { return StepReview }
func (OutputReceipt) StepNumber() Step      { return StepOutput }

// CaseValidations are derived on every read; they are never persisted.
type CaseValidations struct {
	MeetsAge                  bool `json:"meets_age"`
	MeetsFullBenefitIncome    bool `json:"meets_full_benefit_income"`
	MeetsPartialBenefitIncome bool `json:"meets_partial_benefit_income"`
	IsResidentialUse          bool `json:"is_residential_use"`
	ExceedsAppraisalCap       bool `json:"exceeds_appraisal_cap"`
	BurdenDisproportionate    bool `json:"burden_disproportionate"`
	BurdenStronglyFavorable   bool `json:"burden_strongly_favorable"`
	WithinFilingWindow        bool `json:"within_filing_window"`
	EligibilityTier           Tier `json:"eligibility_tier"`
	// DaysSinceDenial is -1 when no denial was received.
	DaysSinceDenial int `json:"days_since_denial"`
}

// Court is the Corte de Apelaciones with jurisdiction over a region.
type Court struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	City    string `json:"city" yaml:"city"`
}

// CaseRecord is the frozen, fully validated case used to build the document.
type CaseRecord struct {
	Personal      PersonalInfo      `json:"personal"`
	Property      PropertyInfo      `json:"property"`
	Economic      EconomicInfo      `json:"economic"`
	Contributions ContributionsInfo `json:"contributions"`
	Prior         PriorProceeding   `json:"prior"`
	Validations   CaseValidations   `json:"validations"`
	Court         Court             `json:"court"`
	// AsOf is the calendar date every derived figure was computed against.
	AsOf        time.Time `json:"as_of"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ── Wizard state ──────────────────────────────────────────────────────────────

// Draft holds raw, not yet validated form values for one step, keyed by field name.
type Draft map[string][]string

// Get returns the first value of field, or "".
func (d Draft) Get(field string) string {
	if vs := d[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (d Draft) Values(field string) []string { return d[field] }

func (d Draft) Clone() Draft {
	if d == nil {
		return nil
	}
	out := make(Draft, len(d))
	for k, vs := range d {
		out[k] = slices.Clone(vs)
	}
	return out
}

// WizardState is the persisted, in-progress case.
type WizardState struct {
	Version        int                 `json:"version"`
	CurrentStep    Step                `json:"current_step"`
	CompletedSteps []Step              `json:"completed_steps"`
	Personal       *PersonalInfo       `json:"personal,omitempty"`
	Property       *PropertyInfo       `json:"property,omitempty"`
	Economic       *EconomicInfo       `json:"economic,omitempty"`
	Contributions  *ContributionsInfo  `json:"contributions,omitempty"`
	Prior          *PriorProceeding    `json:"prior,omitempty"`
	Review         *ReviewConfirmation `json:"review,omitempty"`
	Output         *OutputReceipt      `json:"output,omitempty"`
	Drafts         map[Step]Draft      `json:"drafts,omitempty"`
}

// NewWizardState returns the empty state positioned on step 1.
func NewWizardState() WizardState {
	return WizardState{
		Version:        SchemaVersion,
		CurrentStep:    StepIdentity,
		CompletedSteps: []Step{},
	}
}

func (s WizardState) IsComplete(step Step) bool { return slices.Contains(s.CompletedSteps, step) }

// MarkComplete inserts step keeping CompletedSteps sorted and unique.
func (s *WizardState) MarkComplete(step Step) {
	if s.IsComplete(step) {
		return
	}
	s.CompletedSteps = append(s.CompletedSteps, step)
	slices.Sort(s.CompletedSteps)
}

// Clone returns a deep copy, so callers can read it without holding the owner's lock.
func (s WizardState) Clone() WizardState {
	out := s
	out.CompletedSteps = slices.Clone(s.CompletedSteps)
	if s.Personal != nil {
		p := *s.Personal
		out.Personal = &p
	}
	if s.Property != nil {
		p := *s.Property
		if s.Property.Registry != nil {
			r := *s.Property.Registry
			p.Registry = &r
		}
		out.Property = &p
	}
	if s.Economic != nil {
		e := *s.Economic
		e.Sources = slices.Clone(s.Economic.Sources)
		out.Economic = &e
	}
	if s.Contributions != nil {
		c := *s.Contributions
		c.Charges = slices.Clone(s.Contributions.Charges)
		out.Contributions = &c
	}
	if s.Prior != nil {
		p := *s.Prior
		p.RequestDate = clonePtr(s.Prior.RequestDate)
		p.DenialDate = clonePtr(s.Prior.DenialDate)
		out.Prior = &p
	}
	out.Review = clonePtr(s.Review)
	out.Output = clonePtr(s.Output)
	if s.Drafts != nil {
		out.Drafts = make(map[Step]Draft, len(s.Drafts))
		for k, d := range s.Drafts {
			out.Drafts[k] = d.Clone()
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
