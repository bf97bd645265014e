package entity

import "github.com/conduit-lang/activerow/internal/orm/schema"

// Reference is the metadata-only stand-in for a model. It never links,
// runs Init or holds row data, so building one for a model that links
// back to the caller cannot recurse.
type Reference struct {
	model    string
	table    string
	keyField string
	fields   []string
}

func newReference(sm *schema.Model) *Reference {
	return &Reference{
		model:    sm.Name,
		table:    sm.Table,
		keyField: sm.KeyField,
		fields:   append([]string(nil), sm.Fields...),
	}
}

func (r *Reference) Model() string    { return r.model }
func (r *Reference) Table() string    { return r.table }
func (r *Reference) KeyField() string { return r.keyField }

// Fields returns the model's declared fields
func (r *Reference) Fields() []string {
	return append([]string(nil), r.fields...)
}
