package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/xuri/excelize/v2"

	"estudiantes-gateway/models"
)

const exportSheet = "Estudiantes"

var exportHeader = []interface{}{
	"ID",
	string(models.FieldMatricula),
	string(models.FieldNombre),
	string(models.FieldProyecto),
	string(models.FieldAsistencia),
	string(models.FieldPracticas),
	string(models.FieldParcial),
	string(models.FieldFinal),
}

// ImportStudents reads the first sheet of an xlsx stream and creates one page
// per row. Columns are matricula, nombre, proyecto, asistencia, practicas,
// parcial, final; the first row is a header.
func (g *Gateway) ImportStudents(ctx context.Context, file io.Reader) (*models.ImportResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		log.Printf("Error opening Excel reader: %v", err)
		return nil, invalid("No se pudo leer el archivo Excel: " + err.Error())
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, invalid("El archivo Excel no contiene hojas.")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	result := &models.ImportResult{IDs: []string{}}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		student, ok := studentFromRow(row)
		if !ok {
			log.Printf("Skipping row %d due to missing Matrícula or Nombre", i+1)
			result.Skipped++
			continue
		}

		id, err := g.Create(ctx, student)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			log.Printf("Error adding student %s (%s) during import: %v", student.Nombre, student.Matricula, err)
			result.Failed++
			continue
		}
		result.Imported++
		result.IDs = append(result.IDs, id)
	}

	log.Printf("Imported %d students (%d skipped, %d failed)", result.Imported, result.Skipped, result.Failed)
	return result, nil
}

func studentFromRow(row []string) (models.NewStudent, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	s := models.NewStudent{
		Matricula:  cell(0),
		Nombre:     cell(1),
		Proyecto:   cell(2),
		Asistencia: parseScore(cell(3)),
		Practicas:  parseScore(cell(4)),
		Parcial:    parseScore(cell(5)),
		Final:      parseScore(cell(6)),
	}
	return s, s.Matricula != "" && s.Nombre != ""
}

// parseScore accepts both "7.5" and "7,5"; anything unparsable counts as 0
func parseScore(v string) float64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return n
}

// ExportStudents writes every listed page as a row of an xlsx workbook
func (g *Gateway) ExportStudents(ctx context.Context, w io.Writer) error {
	pages, err := g.List(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, page := range pages {
		r := RowFromPage(page)
		values := []interface{}{r.ID, r.Matricula, r.Nombre, r.Proyecto, r.Asistencia, r.Practicas, r.Parcial, r.Final}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cellRef, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// RowFromPage flattens the student properties of a page
func RowFromPage(page notionapi.Page) models.StudentRow {
	return models.StudentRow{
		ID:         string(page.ID),
		Matricula:  propertyText(page.Properties[string(models.FieldMatricula)]),
		Nombre:     propertyText(page.Properties[string(models.FieldNombre)]),
		Proyecto:   propertyText(page.Properties[string(models.FieldProyecto)]),
		Asistencia: propertyNumber(page.Properties[string(models.FieldAsistencia)]),
		Practicas:  propertyNumber(page.Properties[string(models.FieldPracticas)]),
		Parcial:    propertyNumber(page.Properties[string(models.FieldParcial)]),
		Final:      propertyNumber(page.Properties[string(models.FieldFinal)]),
	}
}

// Decoded pages hold pointer properties, locally built ones hold values.
func propertyText(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	case notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	case *notionapi.TitleProperty:
		return joinRichText(v.Title)
	case notionapi.TitleProperty:
		return joinRichText(v.Title)
	}
	return ""
}

func propertyNumber(p notionapi.Property) float64 {
	switch v := p.(type) {
	case *notionapi.NumberProperty:
		return v.Number
	case notionapi.NumberProperty:
		return v.Number
	}
	return 0
}

func joinRichText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}
