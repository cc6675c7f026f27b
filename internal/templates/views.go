package templates

import (
	"html/template"

	"github.com/csg33k/mirecurso/internal/domain"
)

// Layout carries what every page shows around its content.
type Layout struct {
	Title    string
	Nav      []StepLink
	Progress int
}

type StepLink struct {
	Number     domain.Step
	Title      string
	Href       string
	Current    bool
	Complete   bool
	Accessible bool
}

type IndexView struct {
	Layout
	Started      bool
	ContinueHref string
	Requirements []string
}

// Field kinds understood by the form page.
const (
	KindText       = "text"
	KindTextarea   = "textarea"
	KindDate       = "date"
	KindMoney      = "money"
	KindEmail      = "email"
	KindTel        = "tel"
	KindSelect     = "select"
	KindRadio      = "radio"
	KindCheckboxes = "checkboxes"
	KindCharges    = "charges"
)

type Option struct {
	Value    string
	Label    string
	Selected bool
}

type Field struct {
	Name        string
	Label       string
	Hint        string
	Kind        string
	Value       string
	Placeholder string
	Options     []Option
	Error       string
	// Dictation adds a microphone button that fills the field.
	Dictation bool
	// DependsOn names a field whose value feeds this one's options.
	DependsOn string
	// Endpoint receives single-field commits.
	Endpoint string
	Rows     []ChargeRow
}

type ChargeRow struct {
	ID, Date, Amount                string
	IDError, DateError, AmountError string
}

type FormView struct {
	Layout
	Step      domain.Step
	StepTitle string
	SubTitle  string
	Optional  bool
	Cursor    int
	Sub       int
	SubTotal  int
	IsFirst   bool
	IsLast    bool
	Fields    []Field
	HasErrors bool
	Action    string
}

type Row struct {
	Label string
	Value string
}

type ReviewSection struct {
	Title    string
	EditHref string
	Rows     []Row
}

type Check struct {
	Label  string
	OK     bool
	Detail string
}

type ReviewView struct {
	Layout
	Ready     bool
	Confirmed bool
	Sections  []ReviewSection
	Checks    []Check
	Documents []string
	Warnings  []string
	Error     string
}

type OutputView struct {
	Layout
	Preview     template.HTML
	GeneratedAt string
	TextHref    string
	PDFHref     string
	PrintHref   string
}

// DocumentView is the print-friendly page holding only the appeal.
type DocumentView struct {
	Title string
	Body  template.HTML
}

type ErrorView struct {
	Layout
	Message   string
	RetryHref string
}
