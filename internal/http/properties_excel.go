package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"immobili-data/internal/domain"
	"immobili-data/internal/repository"
)

const propertiesSheet = "Immobili"

// PropertiesExportHeader is the fixed column set, in order. The identity and
// audit columns are deliberately absent.
var PropertiesExportHeader = []string{
	"Nome",
	"Indirizzo",
	"MQ Effettivi",
	"MQ Commerciali",
	"Valore €/m²",
	"Affittato A",
	"Canone Mensile €",
	"Contratto Inizio",
	"Contratto Fine",
	"Mese Pagato",
	"Foto",
}

// headerToField maps spreadsheet headers back to internal field names on
// import. The mapping is bidirectional with the export renderer.
var headerToField = map[string]string{
	"Nome":             "nome",
	"Indirizzo":        "indirizzo",
	"MQ Effettivi":     "mq_effettivi",
	"MQ Commerciali":   "mq_commerciali",
	"Valore €/m²":      "valore_mq",
	"Affittato A":      "affittato_a",
	"Canone Mensile €": "affitto_mensile",
	"Contratto Inizio": "contratto_inizio",
	"Contratto Fine":   "contratto_fine",
	"Mese Pagato":      "mensilita_pagata",
	"Foto":             "immagine_path",
}

// paidTokens is the fixed vocabulary of "true" spellings for the payment
// flag; anything else reads as false.
var paidTokens = map[string]bool{
	"SI":   true,
	"SÌ":   true,
	"1":    true,
	"TRUE": true,
}

// GeneratePropertiesExport renders records into a single flat sheet with one
// row per record and a styled, frozen header row.
func GeneratePropertiesExport(items []*domain.Property) ([]byte, error) {
	f := excelize.NewFile()
	// Close is not deferred: WriteTo below needs the file open.

	index, err := f.NewSheet(propertiesSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range PropertiesExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(propertiesSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(propertiesSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{25, 35, 14, 16, 14, 20, 16, 16, 16, 12, 25}
	for i := range PropertiesExportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(propertiesSheet, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, p := range items {
		row := rowIdx + 2
		values := []any{
			p.Nome,
			p.Indirizzo,
			p.MQEffettivi,
			p.MQCommerciali,
			p.ValoreMQ,
			nullString(p.AffittatoA.String, p.AffittatoA.Valid),
			p.AffittoMensile,
			nullDate(p.ContrattoInizio),
			nullDate(p.ContrattoFine),
			paidToken(p.MensilitaPagata),
			nullString(p.ImmaginePath.String, p.ImmaginePath.Valid),
		}
		for col, value := range values {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(propertiesSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(propertiesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func paidToken(paid bool) string {
	if paid {
		return "SI"
	}
	return "NO"
}

func nullString(s string, valid bool) string {
	if valid {
		return s
	}
	return ""
}

func nullDate(t sql.NullTime) string {
	if t.Valid {
		return t.Time.Format(domain.DateLayout)
	}
	return ""
}

// ImportProperties reads the first sheet, maps headers back to internal
// fields and attempts one create per row. Rows fail independently: each
// failure is recorded with its 1-based spreadsheet row number and the batch
// continues. Returns (importedCount, rowErrors).
func ImportProperties(ctx context.Context, repo repository.PropertiesRepo, f *excelize.File) (int, []string, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return 0, nil, fmt.Errorf("file has no sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return 0, nil, nil
	}

	// header name -> column index
	headerIdx := map[string]int{}
	for i, h := range rows[0] {
		if field, ok := headerToField[strings.TrimSpace(h)]; ok {
			headerIdx[field] = i
		}
	}

	imported := 0
	errs := []string{}
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		// +1: spreadsheet rows are 1-based and row 1 is the header
		humanRow := rowIdx + 1

		payload, err := rowToCreate(rows[rowIdx], headerIdx)
		if err == nil {
			_, err = repo.Create(ctx, payload)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("Riga %d: %v", humanRow, err))
			continue
		}
		imported++
	}
	return imported, errs, nil
}

func rowToCreate(row []string, headerIdx map[string]int) (*domain.PropertyCreate, error) {
	cell := func(field string) string {
		i, ok := headerIdx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	nome := cell("nome")
	if nome == "" {
		return nil, fmt.Errorf("nome obbligatorio")
	}

	c := &domain.PropertyCreate{
		Nome:      nome,
		Indirizzo: cell("indirizzo"),
	}

	var err error
	if c.MQEffettivi, err = cellFloat(cell("mq_effettivi")); err != nil {
		return nil, fmt.Errorf("mq_effettivi: %v", err)
	}
	if c.MQCommerciali, err = cellFloat(cell("mq_commerciali")); err != nil {
		return nil, fmt.Errorf("mq_commerciali: %v", err)
	}
	if c.ValoreMQ, err = cellFloat(cell("valore_mq")); err != nil {
		return nil, fmt.Errorf("valore_mq: %v", err)
	}
	if v := cell("affitto_mensile"); v != "" {
		if c.AffittoMensile, err = cellFloat(v); err != nil {
			return nil, fmt.Errorf("affitto_mensile: %v", err)
		}
	}

	// empty cells are absent, not ""
	if v := cell("affittato_a"); v != "" {
		c.AffittatoA = &v
	}
	if v := cell("immagine_path"); v != "" {
		c.ImmaginePath = &v
	}
	if v := cell("contratto_inizio"); v != "" {
		d, err := normalizeDate(v)
		if err != nil {
			return nil, fmt.Errorf("contratto_inizio: %v", err)
		}
		c.ContrattoInizio = &d
	}
	if v := cell("contratto_fine"); v != "" {
		d, err := normalizeDate(v)
		if err != nil {
			return nil, fmt.Errorf("contratto_fine: %v", err)
		}
		c.ContrattoFine = &d
	}
	c.MensilitaPagata = paidTokens[strings.ToUpper(cell("mensilita_pagata"))]

	return c, nil
}

func cellFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("valore mancante")
	}
	// tolerate the Italian decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("numero non valido %q", s)
	}
	return v, nil
}

// dateLayouts are the cell formats accepted on import; every match is
// normalized to the canonical YYYY-MM-DD.
var dateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"01-02-06",
	"2006/01/02",
}

func normalizeDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(domain.DateLayout), nil
		}
	}
	return "", fmt.Errorf("data non valida %q", s)
}
