package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/archangelproject/metadreams/pkg/metadreams"
	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

const valueWidth = 100

// showFile prints the metadata of a single image as a table.
func showFile(w io.Writer, r pngmeta.Reader, path string) error {
	i, err := r.Read(path)
	if err != nil {
		return fmt.Errorf("could not extract metadata from %s: %w", path, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	rec := &metadreams.ImageRecord{Path: path, Width: i.Width, Height: i.Height}
	rows := [][]string{
		{"path", path},
		{"size", rec.Size()},
		{"file size", humanize.Bytes(uint64(st.Size()))},
	}

	for _, f := range i.Fields {
		if !metadreams.IsSDMetadata(f.Key) {
			rows = append(rows, []string{f.Key, f.Value})
			continue
		}
		sd, err := metadreams.DecodeSDMetadata(f.Value)
		if err != nil {
			rows = append(rows, []string{f.Key, f.Value})
			continue
		}
		for _, e := range sd {
			rows = append(rows, []string{f.Key + "." + e.Key, e.Value})
		}
	}

	_, err = fmt.Fprintln(w, renderTable([]string{"Key", "Value"}, rows))
	return err
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = v
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, WidthMax: valueWidth},
	})
	return tw.Render()
}
