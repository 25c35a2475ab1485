package ingest

import "go.uber.org/zap"

// Action counts what happened to the records of one kind.
type Action struct {
	Accepted  int
	Discarded int // structurally unusable
	Filtered  int // rejected by a configured filter
}

// Added counts graph elements produced from accepted records.
type Added struct {
	Added     int
	Discarded int
}

// Stats aggregates the outcome of one or more loads.
type Stats struct {
	Nodes, Ways, Relations Action

	Edges, EdgeRelations, Places Added

	// OutOfPhase counts records that arrived after their kind's phase ended.
	OutOfPhase int
}

func (s *Stats) merge(o Stats) {
	s.Nodes.add(o.Nodes)
	s.Ways.add(o.Ways)
	s.Relations.add(o.Relations)
	s.Edges.add(o.Edges)
	s.EdgeRelations.add(o.EdgeRelations)
	s.Places.add(o.Places)
	s.OutOfPhase += o.OutOfPhase
}

func (a *Action) add(o Action) {
	a.Accepted += o.Accepted
	a.Discarded += o.Discarded
	a.Filtered += o.Filtered
}

func (a *Added) add(o Added) {
	a.Added += o.Added
	a.Discarded += o.Discarded
}

func actionFields(kind string, a Action) []zap.Field {
	return []zap.Field{
		zap.Int(kind+"Accepted", a.Accepted),
		zap.Int(kind+"Discarded", a.Discarded),
		zap.Int(kind+"Filtered", a.Filtered),
	}
}

func addedFields(kind string, a Added) []zap.Field {
	return []zap.Field{
		zap.Int(kind+"Added", a.Added),
		zap.Int(kind+"Discarded", a.Discarded),
	}
}

// Log reports the counts at info level.
func (s Stats) Log(l *zap.Logger) {
	var fields []zap.Field
	fields = append(fields, actionFields("nodes", s.Nodes)...)
	fields = append(fields, actionFields("ways", s.Ways)...)
	fields = append(fields, actionFields("relations", s.Relations)...)
	fields = append(fields, addedFields("edges", s.Edges)...)
	fields = append(fields, addedFields("edgeRelations", s.EdgeRelations)...)
	fields = append(fields, addedFields("places", s.Places)...)
	if s.OutOfPhase > 0 {
		fields = append(fields, zap.Int("outOfPhase", s.OutOfPhase))
	}
	l.Info("ingestion finished", fields...)
}
