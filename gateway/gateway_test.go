package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estudiantes-gateway/models"
)

type updateCall struct {
	ID         notionapi.PageID
	Properties notionapi.Properties
	Archived   bool
}

// fakeProvider records every call and answers from canned data
type fakeProvider struct {
	batches []*notionapi.DatabaseQueryResponse
	cursors []notionapi.Cursor
	created []notionapi.Properties
	updates []updateCall
	err     error
	nextID  string
}

func (f *fakeProvider) QueryDatabase(_ context.Context, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	resp := f.batches[0]
	f.batches = f.batches[1:]
	return resp, nil
}

func (f *fakeProvider) CreatePage(_ context.Context, props notionapi.Properties) (*notionapi.Page, error) {
	f.created = append(f.created, props)
	if f.err != nil {
		return nil, f.err
	}
	id := f.nextID
	if id == "" {
		id = "page-1"
	}
	return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
}

func (f *fakeProvider) UpdateProperties(_ context.Context, id notionapi.PageID, props notionapi.Properties) (*notionapi.Page, error) {
	return f.update(updateCall{ID: id, Properties: props})
}

func (f *fakeProvider) ArchivePage(_ context.Context, id notionapi.PageID) (*notionapi.Page, error) {
	return f.update(updateCall{ID: id, Archived: true})
}

func (f *fakeProvider) update(call updateCall) (*notionapi.Page, error) {
	f.updates = append(f.updates, call)
	if f.err != nil {
		return nil, f.err
	}
	return &notionapi.Page{ID: notionapi.ObjectID(call.ID)}, nil
}

func (f *fakeProvider) calls() int {
	return len(f.cursors) + len(f.created) + len(f.updates)
}

type memJournal struct {
	entries []models.JournalEntry
	err     error
}

func (m *memJournal) Record(_ context.Context, e models.JournalEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append([]models.JournalEntry{e}, m.entries...)
	return nil
}

func (m *memJournal) Recent(_ context.Context, limit int64) ([]models.JournalEntry, error) {
	if int64(len(m.entries)) < limit {
		return m.entries, nil
	}
	return m.entries[:limit], nil
}

func isValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func isUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

func newTestGateway(p *fakeProvider, j Journal) *Gateway {
	g := New(p, j)
	g.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestCreateAppliesDefaults(t *testing.T) {
	p := &fakeProvider{nextID: "new-id"}
	g := newTestGateway(p, nil)

	id, err := g.Create(context.Background(), models.NewStudent{Matricula: "A01", Nombre: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	require.Len(t, p.created, 1)
	props := p.created[0]
	assert.Len(t, props, 7)
	assert.Equal(t, "A01", propertyText(props["Matrícula"]))
	assert.Equal(t, "Ana", propertyText(props["Nombre"]))
	assert.Equal(t, "", propertyText(props["Proyecto"]))
	for _, f := range []string{"Asistencia", "Practicas", "Pr. Parcial", "Pr. Final"} {
		num, ok := props[f].(notionapi.NumberProperty)
		require.True(t, ok, f)
		assert.Equal(t, 0.0, num.Number, f)
	}
	_, isTitle := props["Nombre"].(notionapi.TitleProperty)
	assert.True(t, isTitle)
}

func TestCreateRequiresMatriculaAndNombre(t *testing.T) {
	tests := []models.NewStudent{
		{Nombre: "Ana"},
		{Matricula: "A01"},
		{},
	}
	for _, s := range tests {
		p := &fakeProvider{}
		g := newTestGateway(p, nil)

		_, err := g.Create(context.Background(), s)
		require.Error(t, err)
		assert.True(t, isValidation(err))
		assert.Equal(t, MsgCreateRequired, err.Error())
		assert.Zero(t, p.calls())
	}
}

func TestPatchFieldNumber(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p, nil)

	err := g.PatchField(context.Background(), models.FieldUpdate{ID: "x", Campo: "Asistencia", Valor: json.RawMessage("5")})
	require.NoError(t, err)

	require.Len(t, p.updates, 1)
	call := p.updates[0]
	assert.Equal(t, notionapi.PageID("x"), call.ID)
	assert.False(t, call.Archived)
	require.Len(t, call.Properties, 1)
	assert.Equal(t, notionapi.NumberProperty{Number: 5}, call.Properties["Asistencia"])
}

func TestPatchFieldAcceptsZero(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p, nil)

	err := g.PatchField(context.Background(), models.FieldUpdate{ID: "x", Campo: "Pr. Final", Valor: json.RawMessage("0")})
	require.NoError(t, err)
	require.Len(t, p.updates, 1)
	assert.Equal(t, notionapi.NumberProperty{Number: 0}, p.updates[0].Properties["Pr. Final"])
}

func TestPatchFieldMatriculaIsStringified(t *testing.T) {
	tests := map[string]string{
		`5`:     "5",
		`2.5`:   "2.5",
		`"A02"`: "A02",
		`true`:  "true",
		`null`:  "null",
		`1e21`:  "1e+21",
		`-0`:    "0",
	}
	for raw, want := range tests {
		p := &fakeProvider{}
		g := newTestGateway(p, nil)

		err := g.PatchField(context.Background(), models.FieldUpdate{ID: "x", Campo: "Matrícula", Valor: json.RawMessage(raw)})
		require.NoError(t, err, raw)
		require.Len(t, p.updates, 1)
		prop, ok := p.updates[0].Properties["Matrícula"].(notionapi.RichTextProperty)
		require.True(t, ok, raw)
		assert.Equal(t, want, joinRichText(prop.RichText), raw)
	}
}

func TestPatchFieldValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.FieldUpdate
		msg  string
	}{
		{"missing id", models.FieldUpdate{Campo: "Asistencia", Valor: json.RawMessage("1")}, MsgUpdateRequired},
		{"missing campo", models.FieldUpdate{ID: "x", Valor: json.RawMessage("1")}, MsgUpdateRequired},
		{"missing valor", models.FieldUpdate{ID: "x", Campo: "Asistencia"}, MsgUpdateRequired},
		{"name not editable", models.FieldUpdate{ID: "x", Campo: "Nombre", Valor: json.RawMessage(`"B"`)}, MsgInvalidField},
		{"project not editable", models.FieldUpdate{ID: "x", Campo: "Proyecto", Valor: json.RawMessage(`"B"`)}, MsgInvalidField},
		{"unknown field", models.FieldUpdate{ID: "x", Campo: "asistencia", Valor: json.RawMessage("1")}, MsgInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			g := newTestGateway(p, nil)

			err := g.PatchField(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, isValidation(err))
			assert.Equal(t, tt.msg, err.Error())
			assert.Zero(t, p.calls())
		})
	}
}

func TestArchiveSetsOnlyArchivedFlag(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p, nil)

	require.NoError(t, g.Archive(context.Background(), "abc"))
	require.Len(t, p.updates, 1)
	assert.Equal(t, notionapi.PageID("abc"), p.updates[0].ID)
	assert.True(t, p.updates[0].Archived)
	assert.Empty(t, p.updates[0].Properties)

	err := g.Archive(context.Background(), "")
	assert.Equal(t, MsgIDRequired, err.Error())
	assert.Len(t, p.updates, 1)
}

func TestClearField(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p, nil)

	require.NoError(t, g.ClearField(context.Background(), models.FieldClear{ID: "x", Campo: "Pr. Parcial"}))
	require.Len(t, p.updates, 1)
	assert.Equal(t, notionapi.Properties{"Pr. Parcial": notionapi.NumberProperty{Number: 0}}, p.updates[0].Properties)

	for _, campo := range []string{"Matrícula", "Nombre", "Proyecto", "Otro"} {
		err := g.ClearField(context.Background(), models.FieldClear{ID: "x", Campo: campo})
		require.Error(t, err, campo)
		assert.Equal(t, MsgInvalidField, err.Error(), campo)
	}
	err := g.ClearField(context.Background(), models.FieldClear{Campo: "Asistencia"})
	assert.Equal(t, MsgClearRequired, err.Error())
	assert.Len(t, p.updates, 1)
}

func TestListFollowsCursors(t *testing.T) {
	p := &fakeProvider{batches: []*notionapi.DatabaseQueryResponse{
		{Results: []notionapi.Page{{ID: "a"}, {ID: "b"}}, HasMore: true, NextCursor: "c1"},
		{Results: []notionapi.Page{{ID: "c"}}},
	}}
	g := newTestGateway(p, nil)

	pages, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []notionapi.Cursor{"", "c1"}, p.cursors)
}

func TestListEmptyIsNotNil(t *testing.T) {
	g := newTestGateway(&fakeProvider{}, nil)

	pages, err := g.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, pages)
	assert.Empty(t, pages)
}

func TestUpstreamErrorKeepsMessage(t *testing.T) {
	p := &fakeProvider{err: errors.New("Could not find page with ID: x")}
	g := newTestGateway(p, nil)

	err := g.Archive(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, isUpstream(err))
	assert.False(t, isValidation(err))
	assert.Equal(t, "Could not find page with ID: x", err.Error())

	_, err = g.List(context.Background())
	assert.True(t, isUpstream(err))
}

func TestJournalRecordsSuccessfulMutations(t *testing.T) {
	j := &memJournal{}
	p := &fakeProvider{nextID: "p1"}
	g := newTestGateway(p, j)
	ctx := context.Background()

	_, err := g.Create(ctx, models.NewStudent{Matricula: "A01", Nombre: "Ana"})
	require.NoError(t, err)
	require.NoError(t, g.PatchField(ctx, models.FieldUpdate{ID: "p1", Campo: "Practicas", Valor: json.RawMessage("8")}))
	require.NoError(t, g.ClearField(ctx, models.FieldClear{ID: "p1", Campo: "Practicas"}))
	require.NoError(t, g.Archive(ctx, "p1"))
	_ = g.Archive(ctx, "")

	entries, err := g.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, models.ActionArchive, entries[0].Action)
	assert.Equal(t, models.ActionClear, entries[1].Action)
	assert.Equal(t, models.ActionEdit, entries[2].Action)
	assert.Equal(t, json.RawMessage("8"), entries[2].Valor)
	assert.Equal(t, models.ActionCreate, entries[3].Action)
	assert.Equal(t, "p1", entries[3].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), entries[3].At)
}

func TestJournalFailureDoesNotFailRequest(t *testing.T) {
	j := &memJournal{err: errors.New("redis down")}
	p := &fakeProvider{}
	g := newTestGateway(p, j)

	assert.NoError(t, g.Archive(context.Background(), "x"))
	assert.Len(t, p.updates, 1)
}

func TestHistoryWithoutJournal(t *testing.T) {
	g := newTestGateway(&fakeProvider{}, nil)

	entries, err := g.History(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestPatchFieldNullClearsNumber(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p, nil)

	err := g.PatchField(context.Background(), models.FieldUpdate{ID: "x", Campo: "Asistencia", Valor: json.RawMessage("null")})
	require.NoError(t, err)
	require.Len(t, p.updates, 1)

	body, err := json.Marshal(p.updates[0].Properties)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Asistencia":{"number":null}}`, string(body))
}

func TestPatchFieldForwardsNonNumericScore(t *testing.T) {
	p := &fakeProvider{err: errors.New("body failed validation: body.properties.Practicas.number should be a number")}
	g := newTestGateway(p, nil)

	err := g.PatchField(context.Background(), models.FieldUpdate{ID: "x", Campo: "Practicas", Valor: json.RawMessage(`"diez"`)})
	require.Error(t, err)
	assert.True(t, isUpstream(err))
	assert.Contains(t, err.Error(), "should be a number")

	require.Len(t, p.updates, 1)
	body, err := json.Marshal(p.updates[0].Properties)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Practicas":{"number":"diez"}}`, string(body))
}

func TestFieldSets(t *testing.T) {
	for _, f := range []models.Field{models.FieldMatricula, models.FieldAsistencia, models.FieldPracticas, models.FieldParcial, models.FieldFinal} {
		_, ok := editableFields[f]
		assert.True(t, ok, f)
	}
	for _, f := range []models.Field{models.FieldNombre, models.FieldProyecto} {
		_, ok := editableFields[f]
		assert.False(t, ok, f)
	}
	assert.Len(t, clearableFields, 4)
	_, ok := clearableFields[models.FieldMatricula]
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		5:        "5",
		-2.25:    "-2.25",
		1e20:     "100000000000000000000",
		1e21:     "1e+21",
		1.5e-7:   "1.5e-7",
		0.000001: "0.000001",
	}
	for n, want := range tests {
		assert.Equal(t, want, formatNumber(n), want)
	}
}
