package entity

import "strings"

// EnsureDomain normalizes an id to <domain>.<object_id> form. A bare id is
// assumed to belong to the given default domain; an already-qualified id
// passes through untouched, even when its domain differs.
func EnsureDomain(domain, id string) string {
	if strings.Contains(id, ".") {
		return id
	}
	return domain + "." + id
}

// Domain returns the namespace prefix of an entity id, or "" for a bare id.
func Domain(entityID string) string {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[:i]
	}
	return ""
}

// ObjectID returns the part of an entity id after the domain prefix.
func ObjectID(entityID string) string {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[i+1:]
	}
	return entityID
}

// SupportedFeatures reads the entity's capability bitmask from its
// attributes. Missing or malformed attributes yield zero, so every feature
// check fails closed.
func SupportedFeatures(v View) int64 {
	raw, ok := v.Attributes["supported_features"]
	if !ok {
		return 0
	}
	switch n := raw.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// NumberAttr reads a numeric attribute. JSON decoding yields float64 for all
// numbers.
func NumberAttr(v View, key string) (float64, bool) {
	raw, ok := v.Attributes[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// StringAttr reads a string attribute.
func StringAttr(v View, key string) (string, bool) {
	s, ok := v.Attributes[key].(string)
	return s, ok
}
