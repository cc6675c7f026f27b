package reference_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
)

func TestDefault_Regions(t *testing.T) {
	ref := reference.Default()
	regions := ref.Regions()
	require.Len(t, regions, 16)
	assert.Equal(t, "Arica y Parinacota", regions[0])
	assert.Equal(t, "Magallanes", regions[len(regions)-1])
}

func TestCourtForRegion(t *testing.T) {
	ref := reference.Default()

	c := ref.CourtForRegion("Biobío")
	assert.Equal(t, "Corte de Apelaciones de Concepción", c.Name)
	assert.Equal(t, "Tucapel 539", c.Address)
	assert.Equal(t, "Concepción", c.City)

	for _, unknown := range []string{"", "Atlántida", "biobío"} {
		c := ref.CourtForRegion(unknown)
		assert.Equal(t, "Corte de Apelaciones de Santiago", c.Name, "region %q", unknown)
	}
}

func TestCommunesForRegion(t *testing.T) {
	ref := reference.Default()

	communes := ref.CommunesForRegion("Arica y Parinacota")
	assert.Equal(t, []string{"Arica", "Camarones", "General Lagos", "Putre"}, communes)

	// The returned slice is a copy.
	communes[0] = "changed"
	assert.Equal(t, "Arica", ref.CommunesForRegion("Arica y Parinacota")[0])

	assert.Empty(t, ref.CommunesForRegion("Atlántida"))
	assert.NotNil(t, ref.CommunesForRegion("Atlántida"))

	assert.True(t, ref.HasCommune("Metropolitana", "Ñuñoa"))
	assert.False(t, ref.HasCommune("Metropolitana", "Temuco"))
}

func TestThresholdsFor(t *testing.T) {
	ref := reference.Default()

	th, ok := ref.ThresholdsFor(time.Date(2024, time.September, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, int64(224000000), th.AppraisalCap)
	assert.Equal(t, 30, th.FilingWindowDays)
	assert.Equal(t, 60, th.MinimumAge)
	assert.Equal(t, "10", th.DisproportionatePercent.String())
	assert.Equal(t, "25", th.StronglyFavorablePercent.String())

	// Window edges are inclusive.
	_, ok = ref.ThresholdsFor(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	_, ok = ref.ThresholdsFor(time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC))
	assert.True(t, ok)

	// Outside every window the latest set is still returned.
	th, ok = ref.ThresholdsFor(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
	assert.Equal(t, int64(224000000), th.AppraisalCap)
}

// Fixtures across the module evaluate cases on 2025-03-15; the embedded table
// must publish a set for that day.
func TestEmbeddedThresholdsCoverFixtureDate(t *testing.T) {
	ref := reference.Default()
	for _, d := range []time.Time{
		time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC),
		time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	} {
		th, ok := ref.ThresholdsFor(d)
		assert.True(t, ok, d.Format(time.DateOnly))
		assert.True(t, th.Covers(d), d.Format(time.DateOnly))
	}
}

func TestBenefitTierForAnnualIncome(t *testing.T) {
	th, _ := reference.Default().ThresholdsFor(time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC))

	// 13.5 UTA = 11.293.182, 30 UTA = 25.095.960
	cases := []struct {
		income int64
		want   domain.Tier
	}{
		{0, domain.TierFull},
		{10200000, domain.TierFull},
		{11293182, domain.TierFull},
		{11293183, domain.TierPartial},
		{25095960, domain.TierPartial},
		{25095961, domain.TierNone},
		{60000000, domain.TierNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, reference.BenefitTierForAnnualIncome(tc.income, th), "income %d", tc.income)
	}
	assert.Equal(t, "11293182", th.FullBenefitIncome().String())
	assert.Equal(t, "25095960", th.PartialBenefitIncome().String())
}

func TestDocumentsFor(t *testing.T) {
	ref := reference.Default()
	none := ref.DocumentsFor(func(reference.DocumentCondition) bool { return false })
	assert.Len(t, none, 4)

	withDenial := ref.DocumentsFor(func(c reference.DocumentCondition) bool {
		return c == reference.IfDenial || c == reference.IfRequest
	})
	assert.Len(t, withDenial, 6)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.yaml")
	content := `
default_region: Única
thresholds:
  - statute: test
    valid_from: "2030-01-01"
    valid_until: "2030-06-30"
    appraisal_cap: 1000
    uta_value: "100"
    full_benefit_uta: "1"
    partial_benefit_uta: "2"
    disproportionate_percent: "5"
    strongly_favorable_percent: "20"
    filing_window_days: 15
    minimum_age: 65
regions:
  - name: Única
    court: {name: Corte Única, address: Calle 1, city: Ciudad}
    communes: [Norte, Sur]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ref, err := reference.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Corte Única", ref.CourtForRegion("Otra").Name)
	th, ok := ref.ThresholdsFor(time.Date(2030, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 65, th.MinimumAge)
	assert.Equal(t, domain.TierPartial, reference.BenefitTierForAnnualIncome(150, th))
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"no thresholds": "default_region: X\nregions: [{name: X}]\n",
		"bad date": `default_region: X
regions: [{name: X}]
thresholds: [{valid_from: "01/01/2024", valid_until: "2024-12-31", uta_value: "1"}]
`,
		"inverted window": `default_region: X
regions: [{name: X}]
thresholds: [{valid_from: "2024-12-31", valid_until: "2024-01-01", uta_value: "1"}]
`,
		"unknown default": `default_region: Y
regions: [{name: X}]
thresholds: [{valid_from: "2024-01-01", valid_until: "2024-12-31", uta_value: "1"}]
`,
		"not yaml": "{{{",
	}
	for name, content := range cases {
		_, err := reference.Parse([]byte(content))
		assert.Error(t, err, name)
	}

	_, err := reference.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
