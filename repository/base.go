package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/supersave/entity"
)

// Base holds the engine-neutral logic every concrete repository layers its
// CRUD on top of: relation projection on write, relation expansion on read,
// and row hydration. Engine repositories embed a Base instead of inheriting
// from it, composing rather than chaining virtual dispatch.
type Base struct {
	Def    entity.Definition
	Lookup Lookup
}

// NewBase constructs a Base bound to def and a registry lookup for relation
// expansion.
func NewBase(def entity.Definition, lookup Lookup) Base {
	return Base{Def: def, Lookup: lookup}
}

// MergeTemplate overlays input on top of the entity's template, input
// winning on any field present in both, so a write only has to set fields
// that differ from the default. It never mutates input.
func (b Base) MergeTemplate(input entity.Entity) entity.Entity {
	merged := make(entity.Entity, len(b.Def.Template)+len(input))
	for k, v := range b.Def.Template {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}
	return merged
}

// SimplifyRelations flattens every relation on the owning entity down to
// {id} references (or arrays of them for multiple relations), leaving every
// other field untouched. It never mutates input; it returns a shallow copy.
func (b Base) SimplifyRelations(input entity.Entity) entity.Entity {
	out := make(entity.Entity, len(input))
	for k, v := range input {
		out[k] = v
	}

	for _, rel := range b.Def.Relations {
		val, ok := out[rel.Field]
		if !ok || val == nil {
			continue
		}
		if rel.Multiple {
			out[rel.Field] = simplifyMultiple(val)
		} else {
			out[rel.Field] = simplifySingle(val)
		}
	}
	return out
}

func simplifySingle(val any) any {
	switch v := val.(type) {
	case string:
		return map[string]any{"id": v}
	case map[string]any:
		if id, ok := v["id"]; ok {
			return map[string]any{"id": id}
		}
		return v
	default:
		return v
	}
}

func simplifyMultiple(val any) any {
	items, ok := val.([]any)
	if !ok {
		return val
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = simplifySingle(item)
	}
	return out
}

// FillInRelations resolves every relation on e against the registered
// repositories in Lookup: single relations resolve one id to one entity (or
// nil when missing), multiple relations batch-resolve with GetByIDs,
// preserving caller order and silently dropping ids that no longer exist.
func (b Base) FillInRelations(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	for _, rel := range b.Def.Relations {
		val, ok := e[rel.Field]
		if !ok || val == nil {
			continue
		}

		repo, found := b.Lookup.Get(rel.Entity, rel.Namespace)
		if !found {
			continue
		}

		if rel.Multiple {
			ids := idsOf(val)
			if len(ids) == 0 {
				e[rel.Field] = []entity.Entity{}
				continue
			}
			resolved, err := repo.GetByIDs(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("expanding relation %q: %w", rel.Field, err)
			}
			byID := make(map[string]entity.Entity, len(resolved))
			for _, item := range resolved {
				byID[entity.IDOf(item)] = item
			}
			ordered := make([]entity.Entity, 0, len(ids))
			for _, id := range ids {
				if item, ok := byID[id]; ok {
					ordered = append(ordered, item)
				}
			}
			e[rel.Field] = ordered
			continue
		}

		id := idOf(val)
		if id == "" {
			continue
		}
		target, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("expanding relation %q: %w", rel.Field, err)
		}
		e[rel.Field] = target
	}
	return e, nil
}

func idOf(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

func idsOf(val any) []string {
	items, ok := val.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := idOf(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Hydrate turns a raw "contents" payload plus an authoritative id into a
// fully expanded entity: parse contents (accepting either a JSON string, as
// most drivers return it, or an already-decoded map), merge the entity's
// template underneath it as defaults, expand relations, then overlay id so
// it always wins over anything (there should be nothing) stored in contents.
func (b Base) Hydrate(ctx context.Context, id string, contents any) (entity.Entity, error) {
	parsed, err := decodeContents(contents)
	if err != nil {
		return nil, fmt.Errorf("decoding contents for id %q: %w", id, err)
	}

	merged := b.MergeTemplate(parsed)
	merged["id"] = id

	return b.FillInRelations(ctx, merged)
}

func decodeContents(contents any) (entity.Entity, error) {
	switch v := contents.(type) {
	case nil:
		return entity.Entity{}, nil
	case string:
		return decodeContentsBytes([]byte(v))
	case []byte:
		return decodeContentsBytes(v)
	case entity.Entity:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported contents representation %T", contents)
	}
}

func decodeContentsBytes(raw []byte) (entity.Entity, error) {
	if len(raw) == 0 {
		return entity.Entity{}, nil
	}
	var out entity.Entity
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeContents serialises an entity's writable fields into the JSON stored
// in the "contents" column. The id is stripped: it is authoritative in its
// own column and must never appear twice.
func EncodeContents(e entity.Entity) ([]byte, error) {
	if _, ok := e["id"]; ok {
		clone := make(entity.Entity, len(e))
		for k, v := range e {
			if k == "id" {
				continue
			}
			clone[k] = v
		}
		e = clone
	}
	return json.Marshal(e)
}
