package models

import (
	"encoding/json"
	"time"
)

// Field names a property of a student page
type Field string

const (
	FieldMatricula  Field = "Matrícula"
	FieldNombre     Field = "Nombre"
	FieldProyecto   Field = "Proyecto"
	FieldAsistencia Field = "Asistencia"
	FieldPracticas  Field = "Practicas"
	FieldParcial    Field = "Pr. Parcial"
	FieldFinal      Field = "Pr. Final"
)

// NewStudent is the body of POST /agregar
type NewStudent struct {
	Matricula  string  `json:"matricula" binding:"required"`
	Nombre     string  `json:"nombre" binding:"required"`
	Proyecto   string  `json:"proyecto"`
	Asistencia float64 `json:"asistencia"`
	Practicas  float64 `json:"practicas"`
	Parcial    float64 `json:"parcial"`
	Final      float64 `json:"final"`
}

// FieldUpdate is the body of PATCH /editar.
// Valor stays raw so that an explicit 0 can be told apart from a missing value.
type FieldUpdate struct {
	ID    string          `json:"id" binding:"required"`
	Campo string          `json:"campo" binding:"required"`
	Valor json.RawMessage `json:"valor"`
}

// FieldClear is the body of PATCH /eliminar-campo
type FieldClear struct {
	ID    string `json:"id" binding:"required"`
	Campo string `json:"campo" binding:"required"`
}

// RecordRef is the body of DELETE /eliminar
type RecordRef struct {
	ID string `json:"id" binding:"required"`
}

// StudentRow is the flattened view of a student page used for spreadsheets
type StudentRow struct {
	ID         string
	Matricula  string
	Nombre     string
	Proyecto   string
	Asistencia float64
	Practicas  float64
	Parcial    float64
	Final      float64
}

// ImportResult summarizes a spreadsheet import
type ImportResult struct {
	Imported int      `json:"importados"`
	Skipped  int      `json:"omitidos"`
	Failed   int      `json:"errores"`
	IDs      []string `json:"ids"`
}

// Journal actions
const (
	ActionCreate  = "agregar"
	ActionEdit    = "editar"
	ActionArchive = "eliminar"
	ActionClear   = "eliminar-campo"
)

// JournalEntry records one successful mutation
type JournalEntry struct {
	Action string          `json:"action"`
	ID     string          `json:"id"`
	Campo  string          `json:"campo,omitempty"`
	Valor  json.RawMessage `json:"valor,omitempty"`
	At     time.Time       `json:"at"`
}
