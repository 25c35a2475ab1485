package graph

import (
	"sync"

	"github.com/pkg/errors"

	"roadgraph/pkg/adjacency"
)

const nameDictionarySection = "roadNameDictionary"

// nameStore keeps road names as indexes into a shared dictionary, one list
// store per name type.
type nameStore struct {
	lists [nameTypeCount]*adjacency.ListStore[uint32]

	mu      sync.Mutex
	dict    []string
	lookup  map[string]uint32
	archive Archive
	loaded  bool
}

func newNameStore(estimate int) *nameStore {
	s := &nameStore{lookup: map[string]uint32{}, dict: []string{""}, loaded: true}
	for _, t := range NameTypes() {
		s.lists[t] = adjacency.NewListStore[uint32]("roadNames."+t.String(), estimate/4)
	}
	return s
}

func (s *nameStore) allocate() {
	for _, l := range s.lists {
		l.Allocate()
	}
}

func (s *nameStore) attach(a Archive) {
	for _, l := range s.lists {
		l.Attach(a)
	}
	s.mu.Lock()
	s.archive, s.loaded = a, false
	s.mu.Unlock()
}

func (s *nameStore) ensureDictionary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	var dict []string
	found, err := s.archive.Value(nameDictionarySection, &dict)
	if err != nil {
		return err
	}
	s.loaded = true
	if !found || len(dict) == 0 {
		return nil
	}
	s.dict = dict
	for i, n := range dict {
		s.lookup[n] = uint32(i)
	}
	return nil
}

func (s *nameStore) set(index uint32, t NameType, names []string) {
	if len(names) == 0 {
		return
	}
	if len(names) > MaxNamesPerType {
		names = names[:MaxNamesPerType]
	}
	if err := s.ensureDictionary(); err != nil {
		panic(err)
	}
	ids := make([]uint32, 0, len(names))
	s.mu.Lock()
	for _, n := range names {
		id, ok := s.lookup[n]
		if !ok {
			id = uint32(len(s.dict))
			s.dict = append(s.dict, n)
			s.lookup[n] = id
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()
	s.lists[t].AddSlice(index, ids)
}

func (s *nameStore) get(index uint32, t NameType) []string {
	l := s.lists[t].List(index)
	if l.Empty() {
		return nil
	}
	if err := s.ensureDictionary(); err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, l.Len())
	for id := range l.All() {
		if int(id) < len(s.dict) {
			names = append(names, s.dict[id])
		}
	}
	return names
}

func (s *nameStore) all(index uint32) map[NameType][]string {
	var m map[NameType][]string
	for _, t := range NameTypes() {
		if names := s.get(index, t); len(names) > 0 {
			if m == nil {
				m = map[NameType][]string{}
			}
			m[t] = names
		}
	}
	return m
}

func (s *nameStore) save(w Writer) error {
	if err := s.ensureDictionary(); err != nil {
		return err
	}
	for _, l := range s.lists {
		if err := l.Save(w); err != nil {
			return err
		}
	}
	if len(s.dict) <= 1 {
		return nil
	}
	return errors.Wrap(w.PutValue(nameDictionarySection, s.dict), "save name dictionary")
}
