// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// encoding.go persists the Catalog into the SchemaTypes,
// SchemaCapabilities, and SchemaLabelIndex keyspaces (§6, erigon-lib
// kv/tables.go-style: one row shape per declared keyspace) and
// rebuilds it on Load, the way a schema snapshot's commit flushes the
// type manager's state and a fresh ReadSnapshot rebuilds a TypeCache
// from it (§4.3, §5).
package typesystem

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
)

func typeKey(id TypeID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

const (
	capOwns    byte = 1
	capPlays   byte = 2
	capRelates byte = 3
)

func capabilityKey(kind byte, a, b TypeID) []byte {
	key := make([]byte, 1+8+8)
	key[0] = kind
	binary.BigEndian.PutUint64(key[1:9], uint64(a))
	binary.BigEndian.PutUint64(key[9:17], uint64(b))
	return key
}

func labelIndexKey(kind Kind, label string) []byte {
	key := make([]byte, 1+len(label))
	key[0] = byte(kind)
	copy(key[1:], label)
	return key
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf, v []byte) []byte {
	buf = appendU32(buf, uint32(len(v)))
	return append(buf, v...)
}

func readU64(data []byte) (uint64, []byte, bool) {
	if len(data) < 8 {
		return 0, data, false
	}
	return binary.BigEndian.Uint64(data[:8]), data[8:], true
}

func readU32(data []byte) (uint32, []byte, bool) {
	if len(data) < 4 {
		return 0, data, false
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], true
}

func readBytes(data []byte) ([]byte, []byte, bool) {
	n, rest, ok := readU32(data)
	if !ok || uint32(len(rest)) < n {
		return nil, data, false
	}
	return rest[:n], rest[n:], true
}

func encodeAnnotation(a Annotation) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, byte(a.Kind))
	buf = appendU64(buf, a.Min)
	buf = appendU64(buf, a.Max)
	if a.HasMax {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendBytes(buf, []byte(a.Pattern))
	buf = appendBytes(buf, a.RangeMin)
	buf = appendBytes(buf, a.RangeMax)
	buf = appendU32(buf, uint32(len(a.AllowedValues)))
	for _, v := range a.AllowedValues {
		buf = appendBytes(buf, v)
	}
	return buf
}

func decodeAnnotation(data []byte) (Annotation, []byte, error) {
	var a Annotation
	if len(data) < 1 {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: kind")
	}
	a.Kind = AnnotationKind(data[0])
	data = data[1:]
	var ok bool
	a.Min, data, ok = readU64(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: min")
	}
	a.Max, data, ok = readU64(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: max")
	}
	if len(data) < 1 {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: has_max")
	}
	a.HasMax = data[0] == 1
	data = data[1:]
	var pat []byte
	pat, data, ok = readBytes(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: pattern")
	}
	a.Pattern = string(pat)
	a.RangeMin, data, ok = readBytes(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: range_min")
	}
	a.RangeMax, data, ok = readBytes(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: range_max")
	}
	var n uint32
	n, data, ok = readU32(data)
	if !ok {
		return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: allowed_values count")
	}
	a.AllowedValues = make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		var v []byte
		v, data, ok = readBytes(data)
		if !ok {
			return a, data, cgerrors.New(cgerrors.KindDeserialize, "annotation truncated: allowed value")
		}
		a.AllowedValues = append(a.AllowedValues, v)
	}
	return a, data, nil
}

func encodeAnnotations(anns []Annotation) []byte {
	buf := appendU32(nil, uint32(len(anns)))
	for _, a := range anns {
		buf = appendBytes(buf, encodeAnnotation(a))
	}
	return buf
}

func decodeAnnotations(data []byte) ([]Annotation, []byte, error) {
	n, data, ok := readU32(data)
	if !ok {
		return nil, data, cgerrors.New(cgerrors.KindDeserialize, "annotations truncated: count")
	}
	out := make([]Annotation, 0, n)
	for i := uint32(0); i < n; i++ {
		var raw []byte
		raw, data, ok = readBytes(data)
		if !ok {
			return nil, data, cgerrors.New(cgerrors.KindDeserialize, "annotations truncated: entry")
		}
		a, _, err := decodeAnnotation(raw)
		if err != nil {
			return nil, data, err
		}
		out = append(out, a)
	}
	return out, data, nil
}

func encodeTypeRow(kind Kind, label string, supertype TypeID, vt ValueType, anns []Annotation) []byte {
	buf := []byte{byte(kind)}
	buf = appendBytes(buf, []byte(label))
	buf = appendU64(buf, uint64(supertype))
	buf = append(buf, byte(vt))
	buf = append(buf, encodeAnnotations(anns)...)
	return buf
}

// Flush writes every type, capability, and label-index row of the
// catalog into batch, keyed as encoding.go documents.
func (m *Manager) Flush(batch *storage.WriteBatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.catalog

	for id, et := range c.entities {
		batch.Put(keyspace.SchemaTypes, typeKey(id), encodeTypeRow(KindEntity, et.Label, et.Supertype, ValueTypeNone, et.Annotations))
		batch.Put(keyspace.SchemaLabelIndex, labelIndexKey(KindEntity, et.Label), typeKey(id))
	}
	for id, rt := range c.relations {
		batch.Put(keyspace.SchemaTypes, typeKey(id), encodeTypeRow(KindRelation, rt.Label, rt.Supertype, ValueTypeNone, rt.Annotations))
		batch.Put(keyspace.SchemaLabelIndex, labelIndexKey(KindRelation, rt.Label), typeKey(id))
	}
	for id, at := range c.attributes {
		batch.Put(keyspace.SchemaTypes, typeKey(id), encodeTypeRow(KindAttribute, at.Label, at.Supertype, at.ValueType, at.Annotations))
		batch.Put(keyspace.SchemaLabelIndex, labelIndexKey(KindAttribute, at.Label), typeKey(id))
	}
	for id, role := range c.roles {
		relLabel := ""
		if rt, ok := c.relations[role.Relation]; ok {
			relLabel = rt.Label
		}
		batch.Put(keyspace.SchemaTypes, typeKey(id), encodeTypeRow(KindRole, role.Label, role.Supertype, ValueTypeNone, role.Annotations))
		batch.Put(keyspace.SchemaLabelIndex, labelIndexKey(KindRole, role.QualifiedLabel(relLabel)), typeKey(id))
	}

	for owner, byAttr := range c.owns {
		for attr, o := range byAttr {
			val := append([]byte{byte(o.Ordering)}, encodeAnnotations(o.Annotations)...)
			batch.Put(keyspace.SchemaCapabilities, capabilityKey(capOwns, owner, attr), val)
		}
	}
	for player, byRole := range c.plays {
		for role, p := range byRole {
			batch.Put(keyspace.SchemaCapabilities, capabilityKey(capPlays, player, role), encodeAnnotations(p.Annotations))
		}
	}
	for relation, byRole := range c.relates {
		for role, r := range byRole {
			batch.Put(keyspace.SchemaCapabilities, capabilityKey(capRelates, relation, role), encodeAnnotations(r.Annotations))
		}
	}
}

// Load rebuilds a Catalog by scanning every row of the schema
// keyspaces visible at snap (§4.3: "the cache is built by scanning the
// type keyspaces").
func Load(snap *storage.ReadSnapshot) (*Catalog, error) {
	c := NewCatalog()

	typesIt, err := snap.IterateRange(keyspace.SchemaTypes, keyspace.Range{})
	if err != nil {
		return nil, err
	}
	defer typesIt.Close()
	for typesIt.Next() {
		id := TypeID(binary.BigEndian.Uint64(typesIt.Key()))
		if err := loadTypeRow(c, id, typesIt.Value()); err != nil {
			return nil, err
		}
		if id >= c.nextID {
			c.nextID = id + 1
		}
	}
	if err := typesIt.Err(); err != nil {
		return nil, err
	}

	capsIt, err := snap.IterateRange(keyspace.SchemaCapabilities, keyspace.Range{})
	if err != nil {
		return nil, err
	}
	defer capsIt.Close()
	for capsIt.Next() {
		if err := loadCapabilityRow(c, capsIt.Key(), capsIt.Value()); err != nil {
			return nil, err
		}
	}
	if err := capsIt.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadTypeRow(c *Catalog, id TypeID, row []byte) error {
	if len(row) < 1 {
		return cgerrors.New(cgerrors.KindDeserialize, "type row truncated: kind")
	}
	kind := Kind(row[0])
	data := row[1:]
	label, data, ok := readBytes(data)
	if !ok {
		return cgerrors.New(cgerrors.KindDeserialize, "type row truncated: label")
	}
	supU, data, ok := readU64(data)
	if !ok {
		return cgerrors.New(cgerrors.KindDeserialize, "type row truncated: supertype")
	}
	supertype := TypeID(supU)
	if len(data) < 1 {
		return cgerrors.New(cgerrors.KindDeserialize, "type row truncated: value_type")
	}
	vt := ValueType(data[0])
	data = data[1:]
	anns, _, err := decodeAnnotations(data)
	if err != nil {
		return err
	}

	switch kind {
	case KindEntity:
		c.entities[id] = &EntityType{ID: id, Label: string(label), Supertype: supertype, Annotations: anns}
		c.addLabel(KindEntity, string(label), id)
	case KindRelation:
		c.relations[id] = &RelationType{ID: id, Label: string(label), Supertype: supertype, Annotations: anns}
		c.addLabel(KindRelation, string(label), id)
	case KindAttribute:
		c.attributes[id] = &AttributeType{ID: id, Label: string(label), Supertype: supertype, ValueType: vt, Annotations: anns}
		c.addLabel(KindAttribute, string(label), id)
	case KindRole:
		c.roles[id] = &RoleType{ID: id, Label: string(label), Supertype: supertype, Annotations: anns}
		// Relation and the qualified label index entry are filled in when
		// the Relates row is loaded (see loadCapabilityRow), since the
		// relation->role edge, not the row itself, carries that link.
	default:
		return cgerrors.New(cgerrors.KindDeserialize, "type row has unknown kind")
	}
	return nil
}

func loadCapabilityRow(c *Catalog, key, value []byte) error {
	if len(key) != 17 {
		return cgerrors.New(cgerrors.KindDeserialize, "capability key malformed")
	}
	kind := key[0]
	a := TypeID(binary.BigEndian.Uint64(key[1:9]))
	b := TypeID(binary.BigEndian.Uint64(key[9:17]))

	switch kind {
	case capOwns:
		if len(value) < 1 {
			return cgerrors.New(cgerrors.KindDeserialize, "owns row truncated")
		}
		ordering := Ordering(value[0])
		anns, _, err := decodeAnnotations(value[1:])
		if err != nil {
			return err
		}
		if c.owns[a] == nil {
			c.owns[a] = make(map[TypeID]*Owns)
		}
		c.owns[a][b] = &Owns{Owner: a, Attribute: b, Ordering: ordering, Annotations: anns}
	case capPlays:
		anns, _, err := decodeAnnotations(value)
		if err != nil {
			return err
		}
		if c.plays[a] == nil {
			c.plays[a] = make(map[TypeID]*Plays)
		}
		c.plays[a][b] = &Plays{Player: a, Role: b, Annotations: anns}
	case capRelates:
		anns, _, err := decodeAnnotations(value)
		if err != nil {
			return err
		}
		if c.relates[a] == nil {
			c.relates[a] = make(map[TypeID]*Relates)
		}
		c.relates[a][b] = &Relates{Relation: a, Role: b, Annotations: anns}
		if role, ok := c.roles[b]; ok {
			role.Relation = a
			if rt, ok := c.relations[a]; ok {
				c.addLabel(KindRole, role.QualifiedLabel(rt.Label), b)
			}
		}
	default:
		return cgerrors.New(cgerrors.KindDeserialize, "capability row has unknown kind")
	}
	return nil
}
