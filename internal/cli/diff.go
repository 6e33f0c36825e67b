package cli

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/collection"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <A> <B>",
	Short: "Compare two collections",
	Long: `Compare two collections and display differences.

Both collections are re-encoded canonically before comparison, so key order
and whitespace do not show up as changes. A summary of added, removed and
changed question ids is printed before the unified diff.

Examples:
  qbank diff questions.json questions_enhanced.json
  qbank diff questions_enhanced.json questions_migrated.json --summary
  qbank diff a.json b.json -o json
`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(runDiff),
}

var (
	diffUnified int
	diffSummary bool
)

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVar(&diffUnified, "unified", 3, "Lines of unified context")
	diffCmd.Flags().BoolVar(&diffSummary, "summary", false, "Only print the id summary")
}

type collectionDiff struct {
	A        string `json:"a" yaml:"a"`
	B        string `json:"b" yaml:"b"`
	Added    []int  `json:"added" yaml:"added"`
	Removed  []int  `json:"removed" yaml:"removed"`
	Changed  []int  `json:"changed" yaml:"changed"`
	Metadata bool   `json:"metadata_changed" yaml:"metadata_changed"`
	Unified  string `json:"unified,omitempty" yaml:"unified,omitempty"`
}

// Identical reports whether the two collections encode to the same bytes.
func (d *collectionDiff) Identical() bool {
	return d.Unified == "" && !d.Metadata && len(d.Added)+len(d.Removed)+len(d.Changed) == 0
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	a, err := collection.Load(args[0])
	if err != nil {
		return err
	}
	b, err := collection.Load(args[1])
	if err != nil {
		return err
	}

	d, err := compareCollections(a, b, diffUnified)
	if err != nil {
		return err
	}
	if diffSummary {
		d.Unified = ""
	}

	r := app.Renderer(cmd.OutOrStdout())
	if r.Structured() {
		return r.Render(d, nil, nil)
	}
	renderDiffHuman(cmd, d)
	return nil
}

func compareCollections(a, b *collection.File, context int) (*collectionDiff, error) {
	d := &collectionDiff{
		A:       a.Path,
		B:       b.Path,
		Added:   []int{},
		Removed: []int{},
		Changed: []int{},
	}

	before, err := recordsByID(a.Collection)
	if err != nil {
		return nil, err
	}
	after, err := recordsByID(b.Collection)
	if err != nil {
		return nil, err
	}
	for id, enc := range before {
		other, ok := after[id]
		switch {
		case !ok:
			d.Removed = append(d.Removed, id)
		case !bytes.Equal(enc, other):
			d.Changed = append(d.Changed, id)
		}
	}
	for id := range after {
		if _, ok := before[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	sort.Ints(d.Added)
	sort.Ints(d.Removed)
	sort.Ints(d.Changed)

	metaA, err := canon.Marshal(a.Collection.Metadata)
	if err != nil {
		return nil, err
	}
	metaB, err := canon.Marshal(b.Collection.Metadata)
	if err != nil {
		return nil, err
	}
	d.Metadata = !bytes.Equal(metaA, metaB)

	encA, err := collection.Encode(a.Collection)
	if err != nil {
		return nil, err
	}
	encB, err := collection.Encode(b.Collection)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(encA, encB) {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(encA)),
			B:        difflib.SplitLines(string(encB)),
			FromFile: a.Path,
			ToFile:   b.Path,
			Context:  context,
		}
		d.Unified, err = difflib.GetUnifiedDiffString(diff)
		if err != nil {
			return nil, fmt.Errorf("failed to diff collections: %w", err)
		}
	}

	return d, nil
}

func recordsByID(c *collection.Collection) (map[int][]byte, error) {
	out := make(map[int][]byte, len(c.Questions))
	for i := range c.Questions {
		enc, err := canon.Marshal(c.Questions[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode question %d: %w", c.Questions[i].ID, err)
		}
		out[c.Questions[i].ID] = enc
	}
	return out, nil
}

func renderDiffHuman(cmd *cobra.Command, d *collectionDiff) {
	out := cmd.OutOrStdout()
	if d.Identical() {
		fmt.Fprintf(out, "No differences between %s and %s\n", d.A, d.B)
		return
	}

	fmt.Fprintf(out, "Comparing %s vs %s\n\n", d.A, d.B)
	fmt.Fprintf(out, "  added:    %s\n", formatIDs(d.Added))
	fmt.Fprintf(out, "  removed:  %s\n", formatIDs(d.Removed))
	fmt.Fprintf(out, "  changed:  %s\n", formatIDs(d.Changed))
	if d.Metadata {
		fmt.Fprintf(out, "  metadata: changed\n")
	}

	if d.Unified != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, d.Unified)
	}
}

// formatIDs prints ids compactly, collapsing consecutive runs: 1-3, 7, 9-12.
func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d (", len(ids))
	for i := 0; i < len(ids); {
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		if i > 0 {
			buf.WriteString(", ")
		}
		if j == i {
			fmt.Fprintf(&buf, "%d", ids[i])
		} else {
			fmt.Fprintf(&buf, "%d-%d", ids[i], ids[j])
		}
		i = j + 1
	}
	buf.WriteString(")")
	return buf.String()
}
