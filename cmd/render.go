package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-research/sitegraph/api"
	"github.com/spf13/cobra"
)

var (
	renderPage    api.Page
	renderKind    string
	renderScript  bool
	renderIndent  bool
	renderTimeout time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the JSON-LD document for one page",
	Example: `  sitegraph render -f site.json -s schemas.hcl --url https://example.com/hello-world/ --post 42 --post-type post
  sitegraph render -d content.db --url https://example.com/category/news/ --kind tax_archive --term 7 --taxonomy category --script`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := api.ParseKind(renderKind)
		if err != nil {
			return err
		}
		page := renderPage
		page.Kind = kind
		if err := page.Validate(); err != nil {
			return err
		}

		e, err := openEngine(cfg, log, true)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if renderTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, renderTimeout)
			defer cancel()
		}

		doc, err := e.Render(ctx, page)
		if err != nil {
			return fmt.Errorf("render %s: %w", page.URL, err)
		}
		out := cmd.OutOrStdout()
		if renderScript {
			tag, err := doc.ScriptTag()
			if err != nil {
				return err
			}
			if tag != "" {
				_, err = fmt.Fprintln(out, tag)
			}
			return err
		}
		return doc.Encode(out, renderIndent)
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderPage.URL, "url", "", "Canonical URL of the page (required)")
	f.StringVar(&renderKind, "kind", "singular", "Page kind")
	f.StringVar(&renderPage.Title, "title", "", "Page title override")
	f.Int64Var(&renderPage.PostID, "post", 0, "Post id")
	f.StringVar(&renderPage.PostType, "post-type", "", "Post type")
	f.Int64Var(&renderPage.TermID, "term", 0, "Term id")
	f.StringVar(&renderPage.Taxonomy, "taxonomy", "", "Taxonomy of the term")
	f.Int64Var(&renderPage.UserID, "user", 0, "User id")
	f.StringVar(&renderPage.SearchQuery, "search", "", "Search query")
	f.StringVar(&renderPage.ProductType, "product-type", "", "Commerce product type")
	f.BoolVar(&renderPage.IsFront, "front", false, "The page is the front page")
	f.BoolVar(&renderPage.IsPostsPage, "posts-page", false, "The page is the posts index")
	f.BoolVar(&renderScript, "script", false, "Wrap the document in a script element")
	f.BoolVar(&renderIndent, "indent", false, "Indent the JSON output")
	f.DurationVar(&renderTimeout, "timeout", 0, "Render deadline (0 = none)")
	_ = renderCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(renderCmd)
}
