package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/adapters/memory"
	"github.com/csg33k/mirecurso/internal/adapters/pdf"
	"github.com/csg33k/mirecurso/internal/casefile"
	"github.com/csg33k/mirecurso/internal/document"
	"github.com/csg33k/mirecurso/internal/logger"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/rut"
	"github.com/csg33k/mirecurso/internal/steps"
	"github.com/csg33k/mirecurso/internal/wizard"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recurso",
		Short: "Recurso de protección por contribuciones",
		Long: `recurso prepara el recurso de protección contra el cobro de contribuciones
de bienes raíces sin pasar por el asistente web.

Lee un archivo de caso en YAML con las mismas respuestas del formulario,
las valida paso a paso y escribe el documento en texto, Markdown, HTML o PDF.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("referencia", "", "archivo YAML con tablas de referencia alternativas")
	root.PersistentFlags().BoolP("verbose", "v", false, "mostrar el detalle de lo que se hace")

	root.AddCommand(generateCmd())
	root.AddCommand(rutCmd())
	root.AddCommand(courtCmd())
	root.AddCommand(communesCmd())
	root.AddCommand(thresholdsCmd())
	return root
}

func loadReference(cmd *cobra.Command) (*reference.Data, error) {
	path, _ := cmd.Flags().GetString("referencia")
	if path == "" {
		return reference.Default(), nil
	}
	return reference.Load(path)
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zap.NewNop(), nil
	}
	return logger.New("debug", "console", "recurso")
}

// asOf resolves the evaluation date: --fecha, then the case file, then today.
func asOf(flag string, f *casefile.File) (time.Time, error) {
	if flag != "" {
		t, err := time.Parse(time.DateOnly, flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("--fecha %q: use AAAA-MM-DD", flag)
		}
		return t, nil
	}
	if f != nil {
		if t, ok, err := f.Date(); err != nil || ok {
			return t, err
		}
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ── generar ───────────────────────────────────────────────────────────────────

var formats = []string{"texto", "markdown", "html", "pdf"}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generar <caso.yaml>",
		Short: "Genera el recurso a partir de un archivo de caso",
		Long: `Genera el recurso a partir de un archivo de caso.

Ejemplo:
  recurso generar caso.yaml
  recurso generar caso.yaml --formato pdf --salida recurso.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("formato")
			output, _ := cmd.Flags().GetString("salida")
			date, _ := cmd.Flags().GetString("fecha")

			format = strings.ToLower(format)
			if !slices.Contains(formats, format) {
				return fmt.Errorf("formato %q no soportado (use %s)", format, strings.Join(formats, ", "))
			}
			ref, err := loadReference(cmd)
			if err != nil {
				return err
			}
			lg, err := newLogger(cmd)
			if err != nil {
				return err
			}
			f, err := casefile.Load(args[0])
			if err != nil {
				return err
			}
			day, err := asOf(date, f)
			if err != nil {
				return err
			}

			// Noon keeps the calendar date stable in any local zone.
			clock := day.Add(12 * time.Hour)
			store := wizard.New(memory.New(), ref,
				wizard.WithClock(func() time.Time { return clock }),
				wizard.WithLogger(lg),
			)
			if err := store.Hydrate(cmd.Context()); err != nil {
				return err
			}
			if err := casefile.Run(cmd.Context(), store, f); err != nil {
				return err
			}
			if _, ok := store.Thresholds(); !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "aviso: no hay umbrales publicados para la fecha; se usan los más recientes")
			}
			doc, rec, err := steps.NewOutput(store).Generate()
			if err != nil {
				return err
			}
			lg.Debug("document built",
				zap.String("court", rec.Court.Name),
				zap.Int("sections", len(doc.Sections)),
			)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			if err := writeDocument(cmd.Context(), w, doc, format); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Recurso escrito en %s (%s)\n", output, rec.Court.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringP("formato", "f", "texto", "formato de salida: texto, markdown, html o pdf")
	cmd.Flags().StringP("salida", "o", "", "archivo de salida (por defecto, la salida estándar)")
	cmd.Flags().String("fecha", "", "fecha de evaluación AAAA-MM-DD (por defecto, la del archivo o hoy)")
	return cmd
}

func writeDocument(ctx context.Context, w io.Writer, doc *document.Document, format string) error {
	switch format {
	case "markdown":
		return document.RenderMarkdown(w, doc)
	case "html":
		return document.RenderHTML(w, doc)
	case "pdf":
		return pdf.New().Render(ctx, doc, w)
	default:
		return document.RenderText(w, doc)
	}
}

// ── consultas ─────────────────────────────────────────────────────────────────

func rutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rut <rut>...",
		Short: "Valida y formatea uno o más RUT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, a := range args {
				if rut.Valid(a) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tválido\n", rut.Format(a))
					continue
				}
				invalid++
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tinválido\n", a)
			}
			if invalid > 0 {
				return fmt.Errorf("%d RUT inválido(s)", invalid)
			}
			return nil
		},
	}
}

func courtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "corte <región>",
		Short: "Muestra la Corte de Apelaciones competente para una región",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := loadReference(cmd)
			if err != nil {
				return err
			}
			if !ref.HasRegion(args[0]) {
				return fmt.Errorf("región %q no encontrada; regiones: %s", args[0], strings.Join(ref.Regions(), ", "))
			}
			c := ref.CourtForRegion(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s, %s\n", c.Name, c.Address, c.City)
			return nil
		},
	}
}

func communesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comunas <región>",
		Short: "Lista las comunas de una región",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := loadReference(cmd)
			if err != nil {
				return err
			}
			if !ref.HasRegion(args[0]) {
				return fmt.Errorf("región %q no encontrada", args[0])
			}
			for _, c := range ref.CommunesForRegion(args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func thresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "umbrales",
		Short: "Muestra los umbrales legales vigentes a una fecha",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("fecha")
			ref, err := loadReference(cmd)
			if err != nil {
				return err
			}
			day, err := asOf(date, nil)
			if err != nil {
				return err
			}
			t, current := ref.ThresholdsFor(day)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fecha:                   %s\n", document.LongDate(day))
			fmt.Fprintf(out, "Norma:                   %s\n", t.Statute)
			fmt.Fprintf(out, "Vigencia:                %s al %s\n", document.ShortDate(t.ValidFrom), document.ShortDate(t.ValidUntil))
			fmt.Fprintf(out, "Avalúo máximo:           %s\n", document.Money(t.AppraisalCap))
			fmt.Fprintf(out, "Exención total hasta:    %s anuales (%s UTA)\n", document.Money(t.FullBenefitIncome().IntPart()), t.FullBenefitUTA)
			fmt.Fprintf(out, "Rebaja parcial hasta:    %s anuales (%s UTA)\n", document.Money(t.PartialBenefitIncome().IntPart()), t.PartialBenefitUTA)
			fmt.Fprintf(out, "Carga desproporcionada:  sobre %s%% del ingreso\n", t.DisproportionatePercent)
			fmt.Fprintf(out, "Plazo para recurrir:     %d días\n", t.FilingWindowDays)
			fmt.Fprintf(out, "Edad mínima:             %d años\n", t.MinimumAge)
			if !current {
				fmt.Fprintln(cmd.ErrOrStderr(), "aviso: la fecha está fuera de toda vigencia publicada; se muestran los umbrales más recientes")
			}
			return nil
		},
	}
	cmd.Flags().String("fecha", "", "fecha AAAA-MM-DD (por defecto, hoy)")
	return cmd
}
