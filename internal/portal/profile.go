// Package portal holds the per-company portal profiles: URLs, selector
// tables, and store mapping for each supported utility provider.
package portal

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Profile describes one company's PQR portal. All selector knowledge
// lives here so the extractor and pagination engine stay portal-agnostic.
type Profile struct {
	// Name is the short company key used in config, paths and logs.
	Name string

	// ListURL is the paginated PQR result list.
	ListURL string

	// Table is the target store table for loaded records.
	Table string

	// Rows locates all result rows on the current page.
	Rows string

	// RowLink is a fmt template producing the selector for the Nth
	// (1-based) row's detail link on the current page.
	RowLink string

	// Banner locates the pagination banner ("<start> - <end> de <total>").
	Banner string

	// NextPage locates the next-page control.
	NextPage string

	// IdentifierStrategies are tried in order on the detail view; the
	// first non-empty text wins as the radicado.
	IdentifierStrategies []string

	// SnapshotFields maps field name to its single location selector on
	// the detail view. One strategy per field, no fallback chain.
	SnapshotFields map[string]string

	// EvidenceField is the snapshot field whose displayed value is the
	// attachment filename, when the record has one.
	EvidenceField string

	// AttachmentLinks are fmt templates (filename substituted) tried in
	// priority order to find the clickable download element.
	AttachmentLinks []string
}

// RowLinkSelector returns the detail-link selector for row n (1-based).
func (p *Profile) RowLinkSelector(n int) string {
	return fmt.Sprintf(p.RowLink, n)
}

// AttachmentSelectors expands the attachment templates for a filename.
// Templates without a placeholder are fixed selectors and pass through.
func (p *Profile) AttachmentSelectors(filename string) []string {
	out := make([]string, 0, len(p.AttachmentLinks))
	for _, tpl := range p.AttachmentLinks {
		if strings.Contains(tpl, "%s") {
			out = append(out, fmt.Sprintf(tpl, filename))
		} else {
			out = append(out, tpl)
		}
	}
	return out
}

var profiles = map[string]*Profile{
	"aire": {
		Name:     "aire",
		ListURL:  "https://mercurio.air-e.com/mercurio/consulta/listadoPqr.jsp",
		Table:    "pqr_aire",
		Rows:     "#tablaResultado tbody tr",
		RowLink:  "#tablaResultado tbody tr:nth-child(%d) td.colRadicado a",
		Banner:   "#tablaResultado .rangoPaginacion",
		NextPage: "#tablaResultado a.siguiente",
		IdentifierStrategies: []string{
			"#lblRadicado",
			"td#radicado",
			".detalle-pqr .numero-radicado",
			"table.datosGenerales tr:first-child td:nth-child(2)",
		},
		SnapshotFields: map[string]string{
			"radicado":         "#lblRadicado",
			"fecha_radicacion": "#lblFechaRadicacion",
			"tipo_tramite":     "#lblTipoTramite",
			"numero_reclamo":   "#lblNumeroReclamo",
			"nic":              "#lblNic",
			"estado":           "#lblEstado",
			"asunto":           "#lblAsunto",
			"anexo":            "#lblAnexo",
		},
		EvidenceField: "anexo",
		AttachmentLinks: []string{
			`a[title="%s"]`,
			`a[download="%s"]`,
			`table.anexos a[href*="%s"]`,
		},
	},
	"afinia": {
		Name:     "afinia",
		ListURL:  "https://mercurio.energiacaribemar.co/mercurio/consulta/listadoPqr.jsp",
		Table:    "pqr_afinia",
		Rows:     "#gridPqr tbody tr",
		RowLink:  "#gridPqr tbody tr:nth-child(%d) a.verDetalle",
		Banner:   "#gridPqr .paginador span.rango",
		NextPage: "#gridPqr .paginador a.pagSiguiente",
		IdentifierStrategies: []string{
			"#radicadoDetalle",
			".encabezado-pqr .radicado",
			"table#datosPqr tr:first-child td:nth-child(2)",
		},
		SnapshotFields: map[string]string{
			"radicado":         "#radicadoDetalle",
			"fecha_radicacion": "#fechaDetalle",
			"tipo_tramite":     "#tipoDetalle",
			"numero_reclamo":   "#reclamoDetalle",
			"nic":              "#nicDetalle",
			"estado":           "#estadoDetalle",
			"asunto":           "#asuntoDetalle",
			"anexo":            "#anexoDetalle",
		},
		EvidenceField: "anexo",
		AttachmentLinks: []string{
			`a[title="%s"]`,
			`table.evidencias a[href*="%s"]`,
			`span.nombreAnexo + a`,
		},
	},
}

// ByName returns the profile for a company key.
func ByName(name string) (*Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, eris.Errorf("portal: unknown company %q", name)
	}
	return p, nil
}

// Names lists the supported company keys in stable order.
func Names() []string {
	return []string{"aire", "afinia"}
}
