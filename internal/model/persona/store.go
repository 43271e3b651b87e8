package persona

// Store is the read-only mentor catalogue.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore keeps personas in seed order with an id index. Personas are
// copied on the way in and out, so callers never share guideline slices.
type MemoryStore struct {
	items []Persona
	byID  map[string]int
}

// NewMemoryStore indexes items. A later persona with a duplicate id
// replaces the earlier one in place.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int, len(items))}
	for _, item := range items {
		if i, ok := s.byID[item.ID]; ok {
			s.items[i] = item.clone()
			continue
		}
		s.byID[item.ID] = len(s.items)
		s.items = append(s.items, item.clone())
	}
	return s
}

// List returns every persona in seed order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		out[i] = item.clone()
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[i].clone(), true
}

func (p Persona) clone() Persona {
	p.Guidelines = append([]string(nil), p.Guidelines...)
	p.ExampleFlow = append([]string(nil), p.ExampleFlow...)
	return p
}
