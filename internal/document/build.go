package document

import (
	"fmt"
	"strings"

	"github.com/csg33k/mirecurso/internal/domain"
	"github.com/csg33k/mirecurso/internal/reference"
)

// Build maps a complete case record to the appeal. It is a pure function of
// rec and ref.
func Build(rec domain.CaseRecord, ref *reference.Data) *Document {
	t, _ := ref.ThresholdsFor(rec.AsOf)
	b := &builder{rec: rec, ref: ref, t: t, pct: Percent(rec.Contributions.IncomePercentage)}

	doc := &Document{
		Title:   "Recurso de Protección - " + rec.Personal.FullName,
		Author:  rec.Personal.FullName,
		Subject: "Recurso de protección contra el cobro de contribuciones de bienes raíces",
	}
	doc.Sections = []Section{
		b.summa(),
		b.tribunal(),
		b.appearance(),
		b.facts(),
		b.law(),
	}
	precedent, variant := b.precedent()
	doc.Precedent = variant
	doc.Sections = append(doc.Sections,
		precedent,
		b.prayer(),
		b.annex(),
		b.selfCounsel(),
		b.signature(),
		b.placeDate(),
		b.disclaimer(),
	)
	doc.number()
	return doc
}

// Annex lists the supporting documents that apply to rec, in catalogue order.
func Annex(rec domain.CaseRecord, ref *reference.Data) []reference.SupportingDocument {
	return ref.DocumentsFor(func(c reference.DocumentCondition) bool {
		switch c {
		case reference.Always:
			return true
		case reference.IfRegistry:
			return rec.Economic.Registry == domain.RegistryYes
		case reference.IfRequest:
			return rec.Prior.FiledRequest
		case reference.IfDenial:
			return rec.Prior.ReceivedDenial
		case reference.IfCharges:
			return hasCharges(rec)
		case reference.IfRegistryEntry:
			return rec.Property.Registry != nil
		}
		return false
	})
}

func hasCharges(rec domain.CaseRecord) bool {
	return rec.Contributions.HasPendingCharges && len(rec.Contributions.Charges) > 0
}

type builder struct {
	rec domain.CaseRecord
	ref *reference.Data
	t   reference.Thresholds
	pct string
}

func para(text string) Block { return Block{Kind: KindParagraph, Runs: []Run{{Text: text}}} }

func numbered(runs ...Run) Block { return Block{Kind: KindParagraph, Numbered: true, Runs: runs} }

func plain(text string) Run { return Run{Text: text} }

func bold(text string) Run { return Run{Text: text, Bold: true} }

// ── Heading ───────────────────────────────────────────────────────────────────

func (b *builder) summa() Section {
	lines := []string{
		"EN LO PRINCIPAL: Recurso de protección.",
		"PRIMER OTROSÍ: Acompaña documentos.",
		"SEGUNDO OTROSÍ: Comparecencia personal.",
	}
	s := Section{ID: SectionSumma}
	for _, l := range lines {
		s.Blocks = append(s.Blocks, Block{Kind: KindCaption, Runs: []Run{plain(l)}})
	}
	return s
}

func (b *builder) tribunal() Section {
	city := strings.ToUpper(courtCity(b.rec.Court.Name))
	return Section{ID: SectionTribunal, Blocks: []Block{
		{Kind: KindTribunal, Runs: []Run{plain("ILTMA. CORTE DE APELACIONES DE " + city)}},
	}}
}

func (b *builder) appearance() Section {
	p := b.rec.Personal
	r := b.ref.Respondent

	who := fmt.Sprintf("%s, cédula nacional de identidad N° %s, de nacionalidad %s, %s, %s, %d años de edad, con domicilio en %s, comuna de %s, Región %s",
		strings.ToUpper(p.FullName), p.RUT, strings.ToLower(p.Nationality), p.MaritalStatus.Label(),
		strings.ToLower(p.Occupation), p.Age, p.Domicile.Street, p.Domicile.Commune, p.Domicile.Region)
	if p.Phone != "" {
		who += ", teléfono " + p.Phone
	}
	if p.Email != "" {
		who += ", correo electrónico " + p.Email
	}
	who += ", a US. ILTMA. respetuosamente digo:"

	against := fmt.Sprintf("Que vengo en interponer recurso de protección en contra del %s, RUT %s, representado legalmente por %s, ambos domiciliados para estos efectos en calle %s, comuna de %s, ciudad de %s, por el acto ilegal y arbitrario que más adelante se describirá, consistente en el cobro de contribuciones de bienes raíces respecto del inmueble donde habito, el cual vulnera las garantías constitucionales establecidas en el artículo 19, numerales 2°, 20° y 24° de la Constitución Política de la República.",
		strings.ToUpper(r.Name), r.RUT, r.Representative, r.Address, r.Commune, r.City)

	return Section{ID: SectionAppearance, Blocks: []Block{para(who), para(against)}}
}

// ── I. Facts ──────────────────────────────────────────────────────────────────

func (b *builder) facts() Section {
	rec := b.rec
	s := Section{ID: SectionFacts, Title: "LOS HECHOS", Roman: true, Numbering: Ordinal}
	add := func(include bool, blk Block) {
		if include {
			s.Blocks = append(s.Blocks, blk)
		}
	}

	add(true, numbered(plain(b.propertyFact())))
	add(true, numbered(plain(b.incomeFact())))
	add(true, numbered(plain(fmt.Sprintf("Que actualmente el Servicio de Impuestos Internos me exige el pago de contribuciones de bienes raíces por un monto de %s trimestrales, equivalentes a %s anuales, lo que representa aproximadamente un %s%% de mis ingresos anuales.",
		Money(rec.Contributions.QuarterlyAmount), Money(rec.Contributions.AnnualAmount), b.pct))))
	add(rec.Validations.BurdenDisproportionate, b.burdenFact())
	add(true, numbered(plain(b.benefitFact())))
	add(rec.Economic.Registry == domain.RegistryYes && rec.Economic.RegistryTier > 0,
		numbered(plain(fmt.Sprintf("Que me encuentro inscrito en el Registro Social de Hogares, dentro del tramo del %d%% de mayor vulnerabilidad socioeconómica de la población.", rec.Economic.RegistryTier))))
	add(!rec.Economic.OwnsOtherProperties,
		numbered(plain("Que el inmueble antes individualizado constituye mi única propiedad, siendo mi vivienda habitual donde resido de manera permanente.")))
	add(hasCharges(rec), b.chargesFact())
	add(rec.Prior.FiledRequest, numbered(plain(b.requestFact())))
	add(rec.Prior.FiledRequest && rec.Prior.ReceivedDenial, numbered(plain(b.denialFact())))
	return s
}

func (b *builder) propertyFact() string {
	pr := b.rec.Property
	var owner string
	switch pr.Ownership {
	case domain.OwnershipWithSpouse:
		owner = "Que soy propietario, en conjunto con mi cónyuge,"
	case domain.OwnershipWithHeirs:
		owner = "Que soy propietario, en conjunto con mis hijos,"
	case domain.OwnershipOther:
		owner = "Que soy comunero"
	default:
		owner = "Que soy legítimo y único propietario"
	}
	text := fmt.Sprintf("%s del inmueble ubicado en %s, comuna de %s, Región %s, identificado con Rol de Avalúo N° %s",
		owner, pr.Location.Street, pr.Location.Commune, pr.Location.Region, pr.RollID)
	if reg := pr.Registry; reg != nil {
		text += fmt.Sprintf(", inscrito a fojas %s N° %s del Registro de Propiedad del año %d", reg.Fojas, reg.Number, reg.Year)
		if reg.Conservator != "" {
			text += " del Conservador de Bienes Raíces de " + reg.Conservator
		}
	}
	text += fmt.Sprintf(", cuyo avalúo fiscal vigente asciende a la suma de %s", Money(pr.Appraisal))
	if pr.Residential {
		text += ", destinado a uso habitacional, constituyendo mi vivienda principal."
	} else {
		text += ", destinado a uso no habitacional."
	}
	return text
}

func (b *builder) incomeFact() string {
	e := b.rec.Economic
	sources := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		if s == domain.SourceOther && e.OtherDescription != "" {
			sources = append(sources, "otros ingresos ("+e.OtherDescription+")")
			continue
		}
		sources = append(sources, s.Label())
	}
	return fmt.Sprintf("Que soy una persona de %d años de edad, esto es, un adulto mayor conforme a la legislación vigente. Mis ingresos mensuales ascienden aproximadamente a la suma de %s, lo que equivale a un ingreso anual de %s, provenientes de %s.",
		b.rec.Personal.Age, Money(e.MonthlyIncome), Money(e.AnnualIncome), joinY(sources))
}

func (b *builder) burdenFact() Block {
	runs := []Run{
		plain("Que, en consecuencia, "),
		bold(fmt.Sprintf("el pago de contribuciones absorbe un %s%% de mis ingresos anuales", b.pct)),
		plain(fmt.Sprintf(", proporción que supera el %s%% y que resulta manifiestamente desproporcionada en relación con mi capacidad contributiva real.",
			b.t.DisproportionatePercent.String())),
	}
	if b.rec.Validations.BurdenStronglyFavorable {
		runs = append(runs, plain(fmt.Sprintf(" Dicha carga excede incluso el %s%% de mis ingresos, comprometiendo seriamente mi subsistencia.",
			b.t.StronglyFavorablePercent.String())))
	}
	return numbered(runs...)
}

func (b *builder) benefitFact() string {
	var text string
	switch b.rec.Economic.CurrentBenefit {
	case domain.BenefitPartial:
		text = "Que si bien cuento con un beneficio de rebaja parcial de contribuciones, este resulta manifiestamente insuficiente considerando mi condición de adulto mayor con ingresos limitados"
	case domain.BenefitFull:
		text = "Que, aun cuando cuento con un beneficio de exención de contribuciones, el Servicio de Impuestos Internos mantiene cobros respecto del inmueble, no obstante mi condición de adulto mayor con ingresos limitados"
	default:
		text = "Que no cuento con ningún beneficio de rebaja de contribuciones, no obstante mi condición de adulto mayor con ingresos limitados"
	}
	text += ", configurándose una situación de evidente desproporción entre el tributo exigido y mi capacidad contributiva real, lo que pone en riesgo mi derecho de propiedad sobre el inmueble donde habito."

	switch b.rec.Validations.EligibilityTier {
	case domain.TierFull:
		text += fmt.Sprintf(" Mis ingresos anuales son inferiores al límite de %s que la %s fija para la exención total.",
			Money(b.t.FullBenefitIncome().IntPart()), b.t.Statute)
	case domain.TierPartial:
		text += fmt.Sprintf(" Mis ingresos anuales son inferiores al límite de %s que la %s fija para la rebaja parcial.",
			Money(b.t.PartialBenefitIncome().IntPart()), b.t.Statute)
	}
	return text
}

func (b *builder) chargesFact() Block {
	c := b.rec.Contributions
	blk := numbered(plain(fmt.Sprintf("Que el Servicio de Impuestos Internos ha emitido los siguientes giros de contribuciones, que suman un total de %s y cuyo cobro impugno por medio del presente recurso:",
		Money(c.ChargesTotal()))))
	for _, ch := range c.Charges {
		blk.Items = append(blk.Items, fmt.Sprintf("Giro N° %s, de fecha %s, por un monto de %s.", ch.ID, LongDate(ch.Date), Money(ch.Amount)))
	}
	return blk
}

func (b *builder) requestFact() string {
	p := b.rec.Prior
	text := "Que presenté ante el Servicio de Impuestos Internos una solicitud de rebaja o exención de contribuciones respecto del inmueble singularizado"
	if p.RequestDate != nil {
		text = fmt.Sprintf("Que con fecha %s presenté ante el Servicio de Impuestos Internos una solicitud de rebaja o exención de contribuciones respecto del inmueble singularizado", LongDate(*p.RequestDate))
	}
	if !p.ReceivedDenial {
		return text + ", sin que a la fecha haya sido acogida."
	}
	return text + "."
}

func (b *builder) denialFact() string {
	p := b.rec.Prior
	text := fmt.Sprintf("Que mediante Resolución N° %s", p.ResolutionNumber)
	if p.DenialDate != nil {
		text += ", de fecha " + LongDate(*p.DenialDate)
	}
	text += ", el Servicio de Impuestos Internos rechazó dicha solicitud, acto que motiva el presente recurso"
	if b.rec.Validations.DaysSinceDenial >= 0 && b.rec.Validations.WithinFilingWindow {
		return text + fmt.Sprintf(", el cual se interpone dentro del plazo de %d días corridos que establece el Auto Acordado de la Excma. Corte Suprema sobre tramitación del recurso de protección.", b.t.FilingWindowDays)
	}
	return text + "."
}

// ── II. Law ───────────────────────────────────────────────────────────────────

func (b *builder) law() Section {
	return Section{ID: SectionLaw, Title: "EL DERECHO", Roman: true, Numbering: Lettered, Blocks: []Block{
		para("El presente recurso se funda en lo dispuesto en el artículo 20 de la Constitución Política de la República, en relación con las garantías constitucionales consagradas en los numerales 2°, 20° y 24° del artículo 19 del mismo cuerpo normativo."),
		para("En efecto, el cobro de contribuciones de bienes raíces sin considerar la capacidad económica real del contribuyente adulto mayor vulnera:"),
		numbered(plain("El derecho a la igualdad ante la ley (artículo 19 N° 2), toda vez que se aplica un gravamen sin distinguir la situación particular de las personas mayores con ingresos limitados, generando una discriminación arbitraria respecto de quienes, encontrándose en similares condiciones, sí acceden a beneficios tributarios.")),
		numbered(plain(fmt.Sprintf("El derecho a la igual repartición de los tributos y demás cargas públicas (artículo 19 N° 20), al imponer una carga tributaria manifiestamente desproporcionada e injusta en relación con la capacidad económica del contribuyente, dado que el pago de contribuciones consume un %s%% de mis ingresos anuales.", b.pct))),
		numbered(plain("El derecho de propiedad (artículo 19 N° 24), al establecer una carga que puede derivar en la imposibilidad de mantener la propiedad del inmueble, privándome de facto de mi vivienda.")),
	}}
}

// ── III. Precedent ────────────────────────────────────────────────────────────

func (b *builder) precedent() (Section, PrecedentVariant) {
	pc := b.ref.Precedent
	s := Section{ID: SectionPrecedent, Title: "PRECEDENTE JUDICIAL APLICABLE", Roman: true}

	cite := fmt.Sprintf("Que la Ilustrísima %s, con fecha %s, en causa Rol N° %s, caratulada \"%s\", acogió un recurso de protección interpuesto por %s, persona mayor en circunstancias similares a las del presente caso.",
		pc.Court, LongDate(pc.Date), pc.Rol, pc.Caption, pc.Appellant)
	s.Blocks = append(s.Blocks, para(cite))

	if b.rec.Validations.ExceedsAppraisalCap {
		s.Blocks = append(s.Blocks,
			para(pc.KeyArgument),
			Block{Kind: KindParagraph, Runs: []Run{
				plain(fmt.Sprintf("En la especie, el avalúo fiscal de mi inmueble, ascendente a %s, supera el tope de %s establecido en la %s. Conforme al criterio señalado, dicho tope constituye un ",
					Money(b.rec.Property.Appraisal), Money(b.t.AppraisalCap), b.t.Statute)),
				bold("requisito adjetivo no esencial"),
				plain(", que no puede privarme del beneficio cuando concurren, como en este caso, los requisitos esenciales de edad, ingresos y destino habitacional."),
			}},
		)
		return s, PrecedentNonEssential
	}

	s.Blocks = append(s.Blocks,
		para("En dicho fallo se estableció que el cobro de contribuciones de bienes raíces sin considerar la capacidad contributiva real de la persona mayor constituye un acto ilegal y arbitrario que vulnera las garantías constitucionales antes señaladas."),
	)
	closing := "Dicha sentencia constituye un valioso precedente judicial que resulta plenamente aplicable al caso de autos, reforzando la procedencia del presente recurso."
	if pc.Final {
		closing = "Dicha sentencia se encuentra firme y ejecutoriada, y constituye un valioso precedente judicial que resulta plenamente aplicable al caso de autos."
	}
	s.Blocks = append(s.Blocks, para(closing))
	return s, PrecedentGeneral
}

// ── IV. Prayer ────────────────────────────────────────────────────────────────

func (b *builder) prayer() Section {
	rec := b.rec
	r := b.ref.Respondent
	s := Section{ID: SectionPrayer, Title: "PETITORIO", Roman: true, Numbering: Decimal, Blocks: []Block{
		para("POR TANTO, en mérito de lo expuesto y de conformidad con lo dispuesto en el artículo 20 de la Constitución Política de la República y el Auto Acordado de la Excma. Corte Suprema sobre tramitación y fallo del recurso de protección,"),
		{Kind: KindCentered, Runs: []Run{plain("SOLICITO A US. ILTMA. se sirva:")}},
		numbered(plain(fmt.Sprintf("Tener por interpuesto recurso de protección en contra del %s, en la persona de %s.", r.Name, r.Representative))),
		numbered(plain("Ordenar al recurrido informar dentro del plazo legal.")),
		numbered(plain(fmt.Sprintf("Acoger el presente recurso y declarar que el cobro de contribuciones de bienes raíces respecto del inmueble Rol N° %s constituye un acto ilegal y arbitrario que vulnera las garantías constitucionales del recurrente.", rec.Property.RollID))),
	}}
	if hasCharges(rec) {
		ids := make([]string, 0, len(rec.Contributions.Charges))
		for _, ch := range rec.Contributions.Charges {
			ids = append(ids, "N° "+ch.ID)
		}
		s.Blocks = append(s.Blocks, numbered(plain(fmt.Sprintf("Dejar sin efecto los giros %s, por un total de %s, ordenando al recurrido abstenerse de su cobro.",
			joinY(ids), Money(rec.Contributions.ChargesTotal())))))
	}
	s.Blocks = append(s.Blocks,
		numbered(plain(fmt.Sprintf("Como medida de protección, ordenar al %s otorgar la exención total o, en subsidio, la rebaja de contribuciones que en derecho corresponda conforme a la situación económica del recurrente.", r.Name))),
		numbered(plain("Condenar en costas al recurrido.")),
	)
	return s
}

// ── Otrosíes, signature ───────────────────────────────────────────────────────

func (b *builder) annex() Section {
	s := Section{ID: SectionAnnex, Title: "PRIMER OTROSÍ:", Numbering: Decimal, Blocks: []Block{
		para("Solicito a US. Iltma. tener por acompañados los siguientes documentos:"),
	}}
	for _, d := range Annex(b.rec, b.ref) {
		s.Blocks = append(s.Blocks, numbered(plain(d.Name+".")))
	}
	return s
}

func (b *builder) selfCounsel() Section {
	return Section{ID: SectionSelfCounsel, Title: "SEGUNDO OTROSÍ:", Blocks: []Block{
		para("Solicito a US. Iltma. tener presente que comparezco personalmente, sin patrocinio de abogado, de conformidad con lo dispuesto en el artículo 2° de la Ley N° 18.120, sobre Comparecencia en Juicio, que permite la comparecencia personal ante las Cortes de Apelaciones en los recursos de protección."),
	}}
}

func (b *builder) signature() Section {
	p := b.rec.Personal
	return Section{ID: SectionSignature, Blocks: []Block{
		{Kind: KindSignature, Runs: []Run{plain(strings.ToUpper(p.FullName))}},
		{Kind: KindSignature, Runs: []Run{plain("RUT: " + p.RUT)}},
	}}
}

func (b *builder) placeDate() Section {
	place := b.rec.Property.Location.Commune
	if place == "" {
		place = b.rec.Court.City
	}
	return Section{ID: SectionPlaceDate, Blocks: []Block{
		{Kind: KindPlaceDate, Runs: []Run{plain(fmt.Sprintf("En %s, a %s", place, LongDate(b.rec.AsOf)))}},
	}}
}

func (b *builder) disclaimer() Section {
	return Section{ID: SectionDisclaimer, Title: "AVISO LEGAL", Blocks: []Block{
		{Kind: KindDisclaimer, Runs: []Run{plain(strings.TrimSpace(b.ref.Disclaimer))}},
	}}
}
