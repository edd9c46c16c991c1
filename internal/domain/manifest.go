package domain

// ManifestEntity is one logical entity and the images it bundles.
type ManifestEntity struct {
	EntityID  int64
	Title     string
	ImageURLs []string
}

// Manifest keeps entities in first-seen order.
type Manifest struct {
	entities []ManifestEntity
	index    map[int64]int
}

func NewManifest() *Manifest {
	return &Manifest{index: make(map[int64]int)}
}

// Add appends urls to the entity, creating it on first sight. A later row for
// the same entity keeps the original title.
func (m *Manifest) Add(entityID int64, title string, urls []string) {
	if m.index == nil {
		m.index = make(map[int64]int)
	}
	i, ok := m.index[entityID]
	if !ok {
		m.index[entityID] = len(m.entities)
		m.entities = append(m.entities, ManifestEntity{
			EntityID:  entityID,
			Title:     title,
			ImageURLs: append([]string{}, urls...),
		})
		return
	}
	m.entities[i].ImageURLs = append(m.entities[i].ImageURLs, urls...)
}

func (m *Manifest) Entities() []ManifestEntity {
	if m == nil {
		return nil
	}
	return m.entities
}

func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entities)
}

// ImageCount is the total number of source images across all entities.
func (m *Manifest) ImageCount() int {
	n := 0
	for _, e := range m.Entities() {
		n += len(e.ImageURLs)
	}
	return n
}
