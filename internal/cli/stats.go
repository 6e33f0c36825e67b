package cli

import (
	"fmt"

	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/domain"
	"github.com/lherron/qbank/internal/render"
	"github.com/lherron/qbank/internal/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <collection>",
	Short: "Show question statistics for a collection",
	Long: `Show the number of questions per disease and per difficulty, and how many
questions carry an image. Disease names are taken from the collection's
disease_translations table when present.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(runStats),
}

var statsLang string

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsLang, "lang", "en", "Language for disease names: en or lt")
}

type statsReport struct {
	Path  string      `json:"path" yaml:"path"`
	Stats stats.Stats `json:"stats" yaml:"stats"`
}

func runStats(app *appctx.App, cmd *cobra.Command, args []string) error {
	if statsLang != "en" && statsLang != "lt" {
		return fmt.Errorf("invalid --lang %q: must be en or lt", statsLang)
	}

	f, err := collection.Load(args[0])
	if err != nil {
		return err
	}
	s := stats.Compute(f.Collection.Questions)

	r := app.Renderer(cmd.OutOrStdout())
	if r.Structured() {
		return r.Render(statsReport{Path: args[0], Stats: s}, nil, nil)
	}

	c := f.Collection
	return renderStats(r, s, func(id string) string { return c.DiseaseLabel(id, statsLang) })
}

// renderStats writes the statistics block as tables. label maps a disease id
// to a display name; nil shows the ids.
func renderStats(r *render.Renderer, s stats.Stats, label func(string) string) error {
	summary := [][]string{
		{"total questions", itoa(s.Total)},
		{"with images", itoa(s.WithImages)},
	}
	for _, d := range domain.Difficulties {
		dc := s.ByDifficulty[d]
		summary = append(summary, []string{string(d), fmt.Sprintf("%d (%d%%)", dc.Count, dc.Percent)})
	}
	if err := r.Render(s, []string{"METRIC", "VALUE"}, summary); err != nil {
		return err
	}

	diseases := s.Diseases()
	if len(diseases) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(diseases))
	for _, id := range diseases {
		name := id
		if label != nil {
			name = label(id)
		}
		rows = append(rows, []string{id, name, itoa(s.ByDisease[id])})
	}
	r.Newline()
	return r.Render(s, []string{"DISEASE", "NAME", "QUESTIONS"}, rows)
}
