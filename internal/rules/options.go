package rules

import "strings"

// Option is one selectable rule token.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionGroup is a labelled set of options for a settings UI picker.
type OptionGroup struct {
	Label   string   `json:"label"`
	Options []Option `json:"options"`
}

// Options lists every rule token the evaluator understands, grouped for a
// picker UI.
func (e *Evaluator) Options() []OptionGroup {
	groups := []OptionGroup{
		{Label: "Basic", Options: []Option{
			{Value: "basic-global", Label: "Entire Site"},
			{Value: "basic-singulars", Label: "All Singulars"},
			{Value: "basic-archives", Label: "All Archives"},
		}},
	}

	special := OptionGroup{Label: "Special Pages", Options: []Option{
		{Value: "special-404", Label: "404 Page"},
		{Value: "special-search", Label: "Search Results"},
		{Value: "special-blog", Label: "Blog / Posts Page"},
		{Value: "special-front", Label: "Front Page"},
		{Value: "special-date", Label: "Date Archive"},
		{Value: "special-author", Label: "Author Archive"},
	}}
	if e.commerce {
		special.Options = append(special.Options, Option{Value: "special-woo-shop", Label: "Shop Page"})
	}
	groups = append(groups, special)

	for _, pt := range e.order {
		g := OptionGroup{Label: pt.Label, Options: []Option{
			{Value: pt.Name + "|all", Label: "All " + pt.Label},
			{Value: pt.Name + "|all|archive", Label: "All " + pt.Label + " Archives"},
			{Value: pt.Name + "|archive", Label: pt.Label + " Archive"},
		}}
		for _, tax := range pt.Taxonomies {
			label := tax.Label
			if label == "" {
				label = tax.Name
			}
			g.Options = append(g.Options, Option{
				Value: pt.Name + "|all|taxarchive|" + tax.Name,
				Label: "All " + label + " Archives",
			})
		}
		groups = append(groups, g)
	}

	if e.commerce {
		g := OptionGroup{Label: "Product Types"}
		for _, t := range ProductTypes {
			g.Options = append(g.Options, Option{
				Value: "product-type|" + t,
				Label: strings.ToUpper(t[:1]) + t[1:] + " Product",
			})
		}
		groups = append(groups, g)
	}
	return groups
}
