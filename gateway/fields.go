package gateway

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"

	"estudiantes-gateway/models"
)

// propertyBuilder turns a raw JSON value into the Notion property for one field
type propertyBuilder func(valor json.RawMessage) notionapi.Property

// editableFields is the closed set accepted by PatchField
var editableFields = map[models.Field]propertyBuilder{
	models.FieldMatricula:  textFromValue,
	models.FieldAsistencia: numberFromValue,
	models.FieldPracticas:  numberFromValue,
	models.FieldParcial:    numberFromValue,
	models.FieldFinal:      numberFromValue,
}

// clearableFields is the closed set accepted by ClearField
var clearableFields = map[models.Field]struct{}{
	models.FieldAsistencia: {},
	models.FieldPracticas:  {},
	models.FieldParcial:    {},
	models.FieldFinal:      {},
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}
}

func textProperty(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: richText(content)}
}

func titleProperty(content string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: richText(content)}
}

func numberProperty(n float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: n}
}

// rawNumber sends valor to the number property as given. null empties the
// property; anything non-numeric is left for the provider to reject.
type rawNumber struct {
	notionapi.NumberProperty
	Raw json.RawMessage
}

func (p rawNumber) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"number":`)
	b.Write(p.Raw)
	b.WriteByte('}')
	return b.Bytes(), nil
}

// studentProperties builds the full property set for a new page
func studentProperties(s models.NewStudent) notionapi.Properties {
	return notionapi.Properties{
		string(models.FieldMatricula):  textProperty(s.Matricula),
		string(models.FieldNombre):     titleProperty(s.Nombre),
		string(models.FieldProyecto):   textProperty(s.Proyecto),
		string(models.FieldAsistencia): numberProperty(s.Asistencia),
		string(models.FieldPracticas):  numberProperty(s.Practicas),
		string(models.FieldParcial):    numberProperty(s.Parcial),
		string(models.FieldFinal):      numberProperty(s.Final),
	}
}

// textFromValue stringifies any JSON value: 5 becomes "5", null becomes "null"
func textFromValue(valor json.RawMessage) notionapi.Property {
	v := bytes.TrimSpace(valor)
	if bytes.Equal(v, []byte("null")) {
		return textProperty("null")
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return textProperty(s)
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return textProperty(formatNumber(n))
	}
	return textProperty(string(v))
}

func numberFromValue(valor json.RawMessage) notionapi.Property {
	v := bytes.TrimSpace(valor)
	var n float64
	if !bytes.Equal(v, []byte("null")) && json.Unmarshal(v, &n) == nil {
		return numberProperty(n)
	}
	return rawNumber{Raw: append(json.RawMessage(nil), v...)}
}

// formatNumber renders n the way a JavaScript number converts to a string:
// plain decimals inside [1e-6, 1e21), exponent notation outside.
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(n, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}

// isAbsent is true only when valor was not sent at all; null is a value
func isAbsent(valor json.RawMessage) bool {
	return len(bytes.TrimSpace(valor)) == 0
}
