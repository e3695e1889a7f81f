package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pavelpuchok/electrorss/feed"
)

var tableHeader = []string{"Data", "Kategoria", "Tytuł", "Jakość", "Sezon", "Lektor", "Napisy", "Dubbing", "Link"}

// RenderTable prints items as a table. Series are purple, other categories
// blue, when colors are enabled.
func RenderTable(w io.Writer, items []feed.Item, colors bool) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "Brak wyników (filtr/okres).")
		return err
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.PubDate.Local().Format(dateLayout),
			paintCategory(it.Category, colors),
			fmt.Sprintf("%s (%s)", it.Title, it.Year),
			it.Quality,
			seasonLabel(it),
			it.Lektor,
			it.Napisy,
			it.Dubbing,
			it.Link,
		})
	}

	table.Header(tableHeader)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("unable to fill table. %w", err)
	}
	return table.Render()
}

func paintCategory(category string, colors bool) string {
	if !colors {
		return category
	}
	c := color.New(color.FgBlue, color.Bold)
	if categoryColor(category) == "purple" {
		c = color.New(color.FgMagenta, color.Bold)
	}
	c.EnableColor()
	return c.Sprint(category)
}

func seasonLabel(it feed.Item) string {
	switch {
	case it.Season != "" && it.Episode != "":
		return fmt.Sprintf("S%s E%s", it.Season, it.Episode)
	case it.Season != "":
		return "S" + it.Season
	case it.Episode != "":
		return "E" + it.Episode
	}
	return ""
}
