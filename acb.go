package cripak

import "fmt"

// AcbReader parses an ACB audio bank: one outer UTF table whose DATA cells
// embed the cue-related sub-tables. Only row-level metadata is read; audio
// payloads are not interpreted.
type AcbReader struct {
	header    *Table
	cues      *Table
	cueNames  *Table
	waveforms *Table
	sequences *Table

	nameToIndex map[string]int
	indexToName map[int]string
	idToIndex   map[uint32]int
}

// Cue is one named entry of a bank.
type Cue struct {
	Name string
	ID   uint32
}

// NewAcbReader parses a whole .acb blob.
func NewAcbReader(blob []byte) (*AcbReader, error) {
	header, err := ParseTable(blob)
	if err != nil {
		return nil, fmt.Errorf("ACB header: %w", err)
	}
	if len(header.Rows) == 0 {
		return nil, fmt.Errorf("%w: ACB header table has no rows", ErrMissingTable)
	}

	a := &AcbReader{
		header:      header,
		nameToIndex: make(map[string]int),
		indexToName: make(map[int]string),
		idToIndex:   make(map[uint32]int),
	}
	if a.cues, err = header.SubTable(0, "CueTable"); err != nil {
		return nil, err
	}
	if a.cueNames, err = header.SubTable(0, "CueNameTable"); err != nil {
		return nil, err
	}
	if a.waveforms, err = header.SubTable(0, "WaveformTable"); err != nil {
		return nil, err
	}
	if a.sequences, err = header.SubTable(0, "SequenceTable"); err != nil {
		return nil, err
	}

	if a.cueNames != nil {
		for i := range a.cueNames.Rows {
			name, ok := a.cueNames.Value(i, "CueName")
			if !ok || name.Type != TypeString {
				continue
			}
			index, ok := a.cueNames.Value(i, "CueIndex")
			if !ok {
				continue
			}
			a.nameToIndex[name.Str] = int(index.Uint())
			a.indexToName[int(index.Uint())] = name.Str
		}
	}
	if a.cues != nil {
		for i := range a.cues.Rows {
			if id, ok := a.cues.Value(i, "CueId"); ok {
				a.idToIndex[uint32(id.Uint())] = i
			}
		}
	}
	return a, nil
}

// Name returns the bank's name from the header table.
func (a *AcbReader) Name() string {
	v, ok := a.header.Value(0, "Name")
	if !ok || v.Type != TypeString {
		return ""
	}
	return v.Str
}

// CueByName resolves a cue through the CueNameTable index.
func (a *AcbReader) CueByName(name string) (Cue, bool) {
	index, ok := a.nameToIndex[name]
	if !ok || a.cues == nil || index >= len(a.cues.Rows) {
		return Cue{}, false
	}
	id, ok := a.cues.Value(index, "CueId")
	if !ok {
		return Cue{}, false
	}
	return Cue{Name: name, ID: uint32(id.Uint())}, true
}

// CueByID resolves a cue by its numeric ID.
func (a *AcbReader) CueByID(id uint32) (Cue, bool) {
	index, ok := a.idToIndex[id]
	if !ok {
		return Cue{}, false
	}
	name, ok := a.indexToName[index]
	if !ok {
		return Cue{}, false
	}
	return Cue{Name: name, ID: id}, true
}

// CueNames lists every named cue.
func (a *AcbReader) CueNames() []string {
	names := make([]string, 0, len(a.nameToIndex))
	for name := range a.nameToIndex {
		names = append(names, name)
	}
	return names
}

// CueIDs lists every cue ID the CueTable carries.
func (a *AcbReader) CueIDs() []uint32 {
	ids := make([]uint32, 0, len(a.idToIndex))
	for id := range a.idToIndex {
		ids = append(ids, id)
	}
	return ids
}

// WaveformTable exposes the raw waveform rows for callers that map cues to
// AWB payload indexes themselves.
func (a *AcbReader) WaveformTable() *Table { return a.waveforms }

// SequenceTable exposes the raw sequence rows.
func (a *AcbReader) SequenceTable() *Table { return a.sequences }
