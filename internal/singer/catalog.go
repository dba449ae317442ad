package singer

// Catalog is the discovery document.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream.
type CatalogEntry struct {
	TapStreamID       string     `json:"tap_stream_id"`
	Stream            string     `json:"stream"`
	Schema            Schema     `json:"schema"`
	KeyProperties     []string   `json:"key_properties"`
	ReplicationKey    string     `json:"replication_key"`
	ReplicationMethod string     `json:"replication_method"`
	Metadata          []Metadata `json:"metadata"`
}

// Metadata annotates a breadcrumb of the schema.
type Metadata struct {
	Breadcrumb []string       `json:"breadcrumb"`
	Metadata   map[string]any `json:"metadata"`
}

// NewCatalog returns the catalog for a single text stream.
func NewCatalog(stream string) Catalog {
	schema := RecordSchema()
	md := []Metadata{{
		Breadcrumb: []string{},
		Metadata: map[string]any{
			"inclusion":                 "available",
			"selected":                  true,
			"table-key-properties":      []string{"filename"},
			"valid-replication-keys":    []string{ReplicationKey},
			"forced-replication-method": "INCREMENTAL",
		},
	}}
	for _, name := range []string{"filename", "name", "textcontent", ReplicationKey} {
		inclusion := "available"
		if name == "filename" || name == ReplicationKey {
			inclusion = "automatic"
		}
		md = append(md, Metadata{
			Breadcrumb: []string{"properties", name},
			Metadata:   map[string]any{"inclusion": inclusion},
		})
	}
	return Catalog{Streams: []CatalogEntry{{
		TapStreamID:       stream,
		Stream:            stream,
		Schema:            schema,
		KeyProperties:     []string{"filename"},
		ReplicationKey:    ReplicationKey,
		ReplicationMethod: "INCREMENTAL",
		Metadata:          md,
	}}}
}
