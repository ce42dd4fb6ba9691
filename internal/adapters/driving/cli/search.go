package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/queryparser"
)

var (
	searchLimit         int
	searchJSON          bool
	searchFilters       []string
	searchNatural       bool
	searchMatchLocation bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed résumés",
	Long: `Performs hybrid search: structured filters select the candidates and
semantic similarity ranks them. Every candidate matching the filters is
eligible, however low its similarity.

Filters are field=op:value with op one of eq, in, contains, any, all, gte,
lte, between. Lists are comma-separated:

  cvsearch search "backend engineer" --filter skills=all:go,kubernetes --filter years_experience=gte:5

With --nl, skills and experience bounds are parsed from the query itself.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "filter as field=op:value (repeatable)")
	searchCmd.Flags().BoolVar(&searchNatural, "nl", false, "derive filters from the query text")
	searchCmd.Flags().BoolVar(&searchMatchLocation, "match-location", false, "with --nl, also filter on locations named in the query")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return notConfigured("search")
	}

	var query string
	if len(args) > 0 {
		query = args[0]
	}

	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}
	if searchNatural {
		parsed := queryparser.Parse(query)
		if !parsed.IsEmpty() && !searchJSON {
			cmd.Printf("Parsed: %s\n\n", parsed)
		}
		filter = append(filter, parsed.Filter(searchMatchLocation)...)
	}

	resp, err := searchService.Search(commandContext(cmd), domain.SearchRequest{
		Query:  query,
		Filter: filter,
		Limit:  searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

func parseFilters(specs []string) (domain.Filter, error) {
	filter := make(domain.Filter, 0, len(specs))
	for _, s := range specs {
		p, err := domain.ParsePredicate(schema, s)
		if err != nil {
			return nil, err
		}
		filter = append(filter, p)
	}
	return filter, nil
}

type searchResultJSON struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Highlight string         `json:"highlight,omitempty"`
	Source    string         `json:"source,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type searchResponseJSON struct {
	Plan       string             `json:"plan"`
	Candidates int                `json:"candidates"`
	Results    []searchResultJSON `json:"results"`
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	out := searchResponseJSON{
		Plan:       resp.Plan.String(),
		Candidates: resp.Candidates,
		Results:    make([]searchResultJSON, 0, len(resp.Results)),
	}
	for i := range resp.Results {
		r := resp.Results[i]
		out.Results = append(out.Results, searchResultJSON{
			ID:        r.Document.ID,
			Score:     r.Score,
			Highlight: r.Highlight,
			Source:    r.Document.Source,
			Fields:    r.Document.Fields,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%s):\n\n", resp.Plan)
	for i := range resp.Results {
		r := resp.Results[i]
		title := r.Document.ID
		if name, ok := r.Document.Fields.String(domain.FieldName); ok && name != "" {
			title = fmt.Sprintf("%s (%s)", name, r.Document.ID)
		}

		cmd.Printf("  [%d] %s %.3f\n", i+1, title, r.Score)
		if summary := fieldSummary(r.Document.Fields); summary != "" {
			cmd.Printf("      %s\n", summary)
		}
		if r.Highlight != "" {
			cmd.Printf("      %s\n", snippet(r.Highlight, 160))
		}
		cmd.Println()
	}
	return nil
}

// fieldSummary renders the fields other than the name on one line.
func fieldSummary(fields domain.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != domain.FieldName {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case []string:
			parts = append(parts, k+"="+strings.Join(v, ","))
		case float64:
			parts = append(parts, fmt.Sprintf("%s=%g", k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}

func snippet(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
