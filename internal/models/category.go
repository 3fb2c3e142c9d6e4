package models

// CategoryRecord is one row of the category extract.
type CategoryRecord struct {
	ID       int64  `csv:"id" json:"id"`
	Name     string `csv:"name" json:"name"`
	Type     string `csv:"type" json:"type"`
	ParentID *int64 `csv:"parent_id" json:"parent_id,omitempty"`
}

// CategoryIndex maps category ids to names and back.
type CategoryIndex struct {
	byID   map[int64]string
	byName map[string]int64
}

// NewCategoryIndex builds an index over a category extract. When two
// categories share a name, the first one wins the name lookup.
func NewCategoryIndex(categories []CategoryRecord) *CategoryIndex {
	idx := &CategoryIndex{
		byID:   make(map[int64]string, len(categories)),
		byName: make(map[string]int64, len(categories)),
	}
	for _, c := range categories {
		idx.byID[c.ID] = c.Name
		if _, ok := idx.byName[c.Name]; !ok {
			idx.byName[c.Name] = c.ID
		}
	}
	return idx
}

// Name returns the name for a category id.
func (i *CategoryIndex) Name(id int64) (string, bool) {
	name, ok := i.byID[id]
	return name, ok
}

// ID returns the id for a category name.
func (i *CategoryIndex) ID(name string) (int64, bool) {
	id, ok := i.byName[name]
	return id, ok
}

// Len returns the number of indexed categories.
func (i *CategoryIndex) Len() int {
	return len(i.byID)
}

// KeywordSet names a group of description keywords acting as a weak
// categorical prior during feature extraction.
type KeywordSet struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}
