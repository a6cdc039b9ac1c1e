package searchsync

import (
	"fmt"
	"strconv"
	"time"
)

// Reserved document field names. Every indexed document carries both.
const (
	// IDField holds the identifier string of the source entity.
	IDField = "id"
	// TypeField is the type discriminator ("namespace.name"). Clear and
	// leftover cleanup issue delete-by-query against this field.
	TypeField = "content_type"
)

// Document is the backend-ready representation of one entity: field
// name to encoded value. Documents are built fresh on every update and
// never mutated after preparation.
type Document map[string]interface{}

// ID returns the document's identifier string.
func (d Document) ID() string {
	s, _ := d[IDField].(string)
	return s
}

// GeoPoint is a latitude/longitude pair. It encodes as "lat,lon",
// which is what the search engine expects for geo_point fields.
type GeoPoint struct {
	Lat float64
	Lon float64
}

func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// ParseGeoPoint parses a "lat,lon" string.
func ParseGeoPoint(s string) (GeoPoint, error) {
	var lat, lon float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lon); err != nil {
		return GeoPoint{}, fmt.Errorf("invalid geo point %q: %w", s, err)
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}

// Encodable lets domain values provide their own search representation.
type Encodable interface {
	EncodeSearchValue() interface{}
}

// EncodeValue converts a prepared field value into a form suitable for
// the search engine's JSON. The set of encodable shapes is closed:
// scalars, times, geo points, identifiers, entities (reduced to their
// identifier string), Encodable values, and sequences or mappings of
// the above.
func EncodeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int32, int64, float32, float64:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case GeoPoint:
		return v.String(), nil
	case Identifier:
		return v.String(), nil
	case Encodable:
		return EncodeValue(v.EncodeSearchValue())
	case Entity:
		return v.Identifier().String(), nil
	case []string:
		return v, nil
	case []time.Time:
		out := make([]interface{}, len(v))
		for i, t := range v {
			out[i] = t.UTC().Format(time.RFC3339)
		}
		return out, nil
	case []Entity:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e.Identifier().String()
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			encoded, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			encoded, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = encoded
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot encode value of type %T for the search index", value)
	}
}
