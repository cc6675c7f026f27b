// Package reference exposes the read-only tables the wizard depends on:
// courts and communes per region, the versioned statutory thresholds and the
// fixed legal parties cited in the document.
//
// The tables ship embedded as reference.yaml and can be swapped at runtime by
// loading another file with the same shape.
package reference

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/csg33k/mirecurso/internal/domain"
)

//go:embed reference.yaml
var embedded []byte

// Thresholds is one published set of statutory limits with its validity window.
type Thresholds struct {
	Statute           string          `yaml:"statute"`
	ValidFromRaw      string          `yaml:"valid_from"`
	ValidUntilRaw     string          `yaml:"valid_until"`
	AppraisalCap      int64           `yaml:"appraisal_cap"`
	UTAValue          decimal.Decimal `yaml:"uta_value"`
	FullBenefitUTA    decimal.Decimal `yaml:"full_benefit_uta"`
	PartialBenefitUTA decimal.Decimal `yaml:"partial_benefit_uta"`
	// Percent of annual income above which the contribution is argued as disproportionate.
	DisproportionatePercent  decimal.Decimal `yaml:"disproportionate_percent"`
	StronglyFavorablePercent decimal.Decimal `yaml:"strongly_favorable_percent"`
	FilingWindowDays         int             `yaml:"filing_window_days"`
	MinimumAge               int             `yaml:"minimum_age"`

	ValidFrom  time.Time `yaml:"-"`
	ValidUntil time.Time `yaml:"-"`
}

// Covers reports whether asOf falls inside the validity window, both ends inclusive.
func (t Thresholds) Covers(asOf time.Time) bool {
	y, m, d := asOf.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.Before(t.ValidFrom) && !day.After(t.ValidUntil)
}

// FullBenefitIncome is the annual income limit for the full exemption, in CLP.
func (t Thresholds) FullBenefitIncome() decimal.Decimal {
	return t.FullBenefitUTA.Mul(t.UTAValue)
}

// PartialBenefitIncome is the annual income limit for the partial rebate, in CLP.
func (t Thresholds) PartialBenefitIncome() decimal.Decimal {
	return t.PartialBenefitUTA.Mul(t.UTAValue)
}

// Respondent is the public body the appeal is filed against.
type Respondent struct {
	Name           string `yaml:"name"`
	Acronym        string `yaml:"acronym"`
	RUT            string `yaml:"rut"`
	Representative string `yaml:"representative"`
	Address        string `yaml:"address"`
	Commune        string `yaml:"commune"`
	City           string `yaml:"city"`
}

// Precedent is the judgment cited in the precedent section.
type Precedent struct {
	Rol         string `yaml:"rol"`
	Court       string `yaml:"court"`
	DateRaw     string `yaml:"date"`
	Caption     string `yaml:"caption"`
	Appellant   string `yaml:"appellant"`
	Outcome     string `yaml:"outcome"`
	Final       bool   `yaml:"final"`
	KeyArgument string `yaml:"key_argument"`

	Date time.Time `yaml:"-"`
}

// DocumentCondition decides whether an annex item applies to a case.
type DocumentCondition string

const (
	Always          DocumentCondition = "always"
	IfRegistry      DocumentCondition = "registry"
	IfRequest       DocumentCondition = "request"
	IfDenial        DocumentCondition = "denial"
	IfCharges       DocumentCondition = "charges"
	IfRegistryEntry DocumentCondition = "registry_details"
)

// SupportingDocument is one entry of the evidentiary annex catalogue.
type SupportingDocument struct {
	Name      string            `yaml:"name"`
	Condition DocumentCondition `yaml:"condition"`
}

// Region pairs a region with its court and ordered commune list.
type Region struct {
	Name     string       `yaml:"name"`
	Court    domain.Court `yaml:"court"`
	Communes []string     `yaml:"communes"`
}

// Data is a loaded reference set. It is immutable after Parse.
type Data struct {
	DefaultRegion string               `yaml:"default_region"`
	Thresholds    []Thresholds         `yaml:"thresholds"`
	Respondent    Respondent           `yaml:"respondent"`
	Precedent     Precedent            `yaml:"precedent"`
	Documents     []SupportingDocument `yaml:"documents"`
	Disclaimer    string               `yaml:"disclaimer"`
	RegionList    []Region             `yaml:"regions"`

	byName map[string]*Region
}

// Default returns the embedded reference set. It panics if the embedded file
// is invalid, which is a build defect.
func Default() *Data {
	d, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("reference: embedded data: %v", err))
	}
	return d
}

// Load reads a reference set from path.
func Load(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference: read %s: %w", path, err)
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("reference: %s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and checks a reference set.
func Parse(b []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(d.Thresholds) == 0 {
		return nil, fmt.Errorf("no thresholds defined")
	}
	for i := range d.Thresholds {
		t := &d.Thresholds[i]
		var err error
		if t.ValidFrom, err = time.Parse(time.DateOnly, t.ValidFromRaw); err != nil {
			return nil, fmt.Errorf("thresholds[%d].valid_from: %w", i, err)
		}
		if t.ValidUntil, err = time.Parse(time.DateOnly, t.ValidUntilRaw); err != nil {
			return nil, fmt.Errorf("thresholds[%d].valid_until: %w", i, err)
		}
		if t.ValidUntil.Before(t.ValidFrom) {
			return nil, fmt.Errorf("thresholds[%d]: window ends before it starts", i)
		}
		if !t.UTAValue.IsPositive() {
			return nil, fmt.Errorf("thresholds[%d].uta_value must be positive", i)
		}
	}
	sort.SliceStable(d.Thresholds, func(i, j int) bool {
		return d.Thresholds[i].ValidFrom.Before(d.Thresholds[j].ValidFrom)
	})
	if d.Precedent.DateRaw != "" {
		pd, err := time.Parse(time.DateOnly, d.Precedent.DateRaw)
		if err != nil {
			return nil, fmt.Errorf("precedent.date: %w", err)
		}
		d.Precedent.Date = pd
	}

	d.byName = make(map[string]*Region, len(d.RegionList))
	for i := range d.RegionList {
		r := &d.RegionList[i]
		if _, dup := d.byName[r.Name]; dup {
			return nil, fmt.Errorf("region %q listed twice", r.Name)
		}
		d.byName[r.Name] = r
	}
	if _, ok := d.byName[d.DefaultRegion]; !ok {
		return nil, fmt.Errorf("default_region %q is not a listed region", d.DefaultRegion)
	}
	return &d, nil
}

// ── Lookups ───────────────────────────────────────────────────────────────────

// CourtForRegion returns the court for region, or the default region's court
// when region is unknown.
func (d *Data) CourtForRegion(region string) domain.Court {
	if r, ok := d.byName[region]; ok {
		return r.Court
	}
	return d.byName[d.DefaultRegion].Court
}

// CommunesForRegion returns a copy of the ordered commune list, empty when
// region is unknown.
func (d *Data) CommunesForRegion(region string) []string {
	r, ok := d.byName[region]
	if !ok {
		return []string{}
	}
	return slices.Clone(r.Communes)
}

// HasRegion reports whether region is listed.
func (d *Data) HasRegion(region string) bool {
	_, ok := d.byName[region]
	return ok
}

// HasCommune reports whether commune belongs to region.
func (d *Data) HasCommune(region, commune string) bool {
	r, ok := d.byName[region]
	return ok && slices.Contains(r.Communes, commune)
}

// Regions returns region names in table order.
func (d *Data) Regions() []string {
	out := make([]string, len(d.RegionList))
	for i, r := range d.RegionList {
		out[i] = r.Name
	}
	return out
}

// ThresholdsFor returns the set whose window covers asOf. Outside every window
// it falls back to the most recent set and reports false; callers decide
// whether to warn.
func (d *Data) ThresholdsFor(asOf time.Time) (Thresholds, bool) {
	for _, t := range d.Thresholds {
		if t.Covers(asOf) {
			return t, true
		}
	}
	return d.Thresholds[len(d.Thresholds)-1], false
}

// DocumentsFor filters the annex catalogue by the conditions that hold.
func (d *Data) DocumentsFor(holds func(DocumentCondition) bool) []SupportingDocument {
	var out []SupportingDocument
	for _, doc := range d.Documents {
		if doc.Condition == Always || holds(doc.Condition) {
			out = append(out, doc)
		}
	}
	return out
}

// BenefitTierForAnnualIncome classifies an annual income against t. The
// comparison is done in UTA: at or under the full multiplier qualifies for the
// full exemption, at or under the partial multiplier for the partial rebate.
func BenefitTierForAnnualIncome(income int64, t Thresholds) domain.Tier {
	inUTA := decimal.NewFromInt(income).Div(t.UTAValue)
	switch {
	case inUTA.LessThanOrEqual(t.FullBenefitUTA):
		return domain.TierFull
	case inUTA.LessThanOrEqual(t.PartialBenefitUTA):
		return domain.TierPartial
	default:
		return domain.TierNone
	}
}
