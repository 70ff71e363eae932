package catalog

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"flowcore/relexpr"
	"flowcore/types"
)

// DropMode controls remove's behavior when other objects reference the
// target (spec §4.3).
type DropMode int

const (
	// Restrict fails the remove if anything depends on the target.
	Restrict DropMode = iota
	// Cascade removes the target and every transitive dependent.
	Cascade
)

var (
	ErrDuplicateName = fmt.Errorf("duplicate catalog name")
	ErrUnknownName   = fmt.Errorf("unknown catalog name")
)

type dependencyError struct {
	name       string
	dependents []string
}

func (e *dependencyError) Error() string {
	return fmt.Sprintf("cannot drop %q: depended on by %v", e.name, e.dependents)
}

// Store is the in-memory name→Dataflow mapping, plus the reverse-dependency
// index cascade/restrict removal needs. Grounded in the teacher's
// sync.Map-based Shard.tables bookkeeping (storage/storage.go's AddTable),
// generalized from "one primary index per table" to "one entry plus a
// dependency set per dataflow" and made exclusion-locked since catalog
// mutation always happens on the coordinator/planner's single calling
// goroutine but reads (get_type, entries) may come from elsewhere.
type Store struct {
	mu sync.RWMutex

	byName map[string]*Dataflow
	byID   map[GlobalID]*Dataflow

	// dependents[x] is the set of names that reference x (x cannot be
	// dropped in Restrict mode while this set is non-empty).
	dependents map[string]mapset.Set[string]
}

func NewStore() *Store {
	return &Store{
		byName:     make(map[string]*Dataflow),
		byID:       make(map[GlobalID]*Dataflow),
		dependents: make(map[string]mapset.Set[string]),
	}
}

// Insert adds d to the catalog, assigning it a fresh GlobalID. Fails if the
// name is already taken (spec §4.3: "insert of a duplicate name fails").
func (s *Store) Insert(d *Dataflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[d.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
	}
	if d.ID == 0 {
		d.ID = types.NextGlobalID()
	}
	s.byName[d.Name] = d
	s.byID[d.ID] = d
	if _, ok := s.dependents[d.Name]; !ok {
		s.dependents[d.Name] = mapset.NewThreadUnsafeSet[string]()
	}
	if d.Kind == KindView && d.Expr != nil {
		for _, dep := range relexpr.CollectGets(d.Expr) {
			if _, ok := s.dependents[dep]; !ok {
				s.dependents[dep] = mapset.NewThreadUnsafeSet[string]()
			}
			s.dependents[dep].Add(d.Name)
		}
	}
	return nil
}

// Get looks up a dataflow by name. Fails if absent (spec §4.3: "get on an
// unknown name fails").
func (s *Store) Get(name string) (*Dataflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return d, nil
}

// GetType returns the relation type of the named object.
func (s *Store) GetType(name string) (relexpr.RelationType, error) {
	d, err := s.Get(name)
	if err != nil {
		return relexpr.RelationType{}, err
	}
	return d.RelationType, nil
}

// Entries returns every catalog object, in no particular order.
func (s *Store) Entries() []*Dataflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Dataflow, 0, len(s.byName))
	for _, d := range s.byName {
		out = append(out, d)
	}
	return out
}

// Remove drops name from the catalog. In Restrict mode it fails if anything
// else in the catalog still references name. In Cascade mode it removes
// name and every transitive dependent, appending each removed Dataflow to
// out in removal order (dependents before dependencies), satisfying
// invariant 10: after a cascade drop, nothing remaining references any
// removed id.
func (s *Store) Remove(name string, mode DropMode, out *[]*Dataflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownName, name)
	}

	if mode == Restrict {
		if deps := s.dependents[name]; deps != nil && deps.Cardinality() > 0 {
			return &dependencyError{name: name, dependents: deps.ToSlice()}
		}
		s.removeOneLocked(name, out)
		return nil
	}

	// Cascade: compute the transitive closure of dependents first (BFS),
	// then remove leaves-first so each removal's own Restrict-style
	// bookkeeping (clearing this name out of its dependencies' dependents
	// sets) stays consistent.
	order := s.transitiveDependentsLocked(name)
	// order lists name first; BFS order alone does not put every dependent
	// after its dependencies, so each pass removes only the entries nothing
	// remaining depends on, until the whole closure is gone.
	for len(order) > 0 {
		for i := len(order) - 1; i >= 0; i-- {
			if deps := s.dependents[order[i]]; deps == nil || deps.Cardinality() == 0 {
				s.removeOneLocked(order[i], out)
				order = append(order[:i], order[i+1:]...)
			}
		}
	}
	return nil
}

// transitiveDependentsLocked returns [name, direct dependents, their
// dependents, ...] with name first, via BFS. Caller holds s.mu.
func (s *Store) transitiveDependentsLocked(name string) []string {
	seen := map[string]bool{name: true}
	order := []string{name}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		deps := s.dependents[cur]
		if deps == nil {
			continue
		}
		for _, dep := range deps.ToSlice() {
			if !seen[dep] {
				seen[dep] = true
				order = append(order, dep)
				queue = append(queue, dep)
			}
		}
	}
	return order
}

// removeOneLocked deletes name itself (not its dependents) from every
// index and appends it to out. Caller holds s.mu.
func (s *Store) removeOneLocked(name string, out *[]*Dataflow) {
	d, ok := s.byName[name]
	if !ok {
		return
	}
	delete(s.byName, name)
	delete(s.byID, d.ID)
	delete(s.dependents, name)
	if d.Kind == KindView && d.Expr != nil {
		for _, dep := range relexpr.CollectGets(d.Expr) {
			if set, ok := s.dependents[dep]; ok {
				set.Remove(name)
			}
		}
	}
	*out = append(*out, d)
}
