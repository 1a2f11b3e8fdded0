package idealista

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// LocationSpec is either a center/distance circle or a location identifier, never both.
type LocationSpec struct {
	Center     string
	Distance   float64
	LocationID string
}

// ByCenter reports whether the location is the center/distance shape.
func (l LocationSpec) ByCenter() bool {
	return l.LocationID == ""
}

func (l LocationSpec) fields() map[string]interface{} {
	if l.ByCenter() {
		return map[string]interface{}{
			"center":   l.Center,
			"distance": l.Distance,
		}
	}
	return map[string]interface{}{"locationId": l.LocationID}
}

// BuildLocationSpec picks the location shape of a request. center and distance form a
// single parameter and must be given together; exactly one of that pair or locationID
// must be supplied.
func BuildLocationSpec(center string, distance *float64, locationID string) (LocationSpec, error) {
	hasCenter := center != ""
	hasDistance := distance != nil
	hasID := locationID != ""

	if hasCenter != hasDistance {
		return LocationSpec{}, &ValidationError{
			Kind:    AmbiguousLocation,
			Field:   "location",
			Message: "center and distance must be specified together",
		}
	}
	if hasCenter == hasID {
		return LocationSpec{}, &ValidationError{
			Kind:    AmbiguousLocation,
			Field:   "location",
			Message: "you must specify a center + distance or a locationId in each request",
		}
	}

	if hasCenter {
		return LocationSpec{Center: center, Distance: *distance}, nil
	}
	return LocationSpec{LocationID: locationID}, nil
}

// LocationInput holds the raw location fields of a search before validation.
type LocationInput struct {
	Center     string
	Distance   *float64
	LocationID string
}

// OptionalFields are sent only when set. Strings and enums are unset when empty,
// pointers and slices when nil.
type OptionalFields struct {
	Locale        string
	MaxItems      *int
	NumPage       *int
	MaxPrice      *float64
	MinPrice      *float64
	SinceDate     SinceDate
	Order         string
	Sort          Sort
	AdIDs         []int
	HasMultimedia *bool
}

// SearchRequest is the flat payload posted to the search endpoint.
type SearchRequest map[string]interface{}

// BuildSearchPayload validates and merges the required fields, the location and the set
// optional fields into a SearchRequest.
func BuildSearchPayload(country string, operation Operation, propertyType PropertyType, location LocationInput, extra OptionalFields) (SearchRequest, error) {
	if strings.TrimSpace(country) == "" {
		return nil, &ValidationError{Kind: MissingField, Field: "country", Message: "country is required"}
	}
	op, err := ParseOperation(string(operation))
	if err != nil {
		return nil, err
	}
	pt, err := ParsePropertyType(string(propertyType))
	if err != nil {
		return nil, err
	}

	loc, err := BuildLocationSpec(location.Center, location.Distance, location.LocationID)
	if err != nil {
		return nil, err
	}

	optional, err := extra.fields()
	if err != nil {
		return nil, err
	}

	data := SearchRequest{
		"country":      country,
		"operation":    string(op),
		"propertyType": string(pt),
	}
	for k, v := range loc.fields() {
		data[k] = v
	}
	for k, v := range optional {
		data[k] = v
	}
	return data, nil
}

func (o OptionalFields) fields() (map[string]interface{}, error) {
	out := map[string]interface{}{}

	if o.Locale != "" {
		out["locale"] = o.Locale
	}
	if o.MaxItems != nil {
		out["maxItems"] = *o.MaxItems
	}
	if o.NumPage != nil {
		out["numPage"] = *o.NumPage
	}
	if o.MaxPrice != nil {
		out["maxPrice"] = *o.MaxPrice
	}
	if o.MinPrice != nil {
		out["minPrice"] = *o.MinPrice
	}
	if o.SinceDate != "" {
		since, err := ParseSinceDate(string(o.SinceDate))
		if err != nil {
			return nil, err
		}
		out["sinceDate"] = string(since)
	}
	if o.Order != "" {
		out["order"] = o.Order
	}
	if o.Sort != "" {
		sort, err := ParseSort(string(o.Sort))
		if err != nil {
			return nil, err
		}
		out["sort"] = string(sort)
	}
	if o.AdIDs != nil {
		ids := make([]int, len(o.AdIDs))
		copy(ids, o.AdIDs)
		out["adIds"] = ids
	}
	if o.HasMultimedia != nil {
		out["hasMultimedia"] = *o.HasMultimedia
	}
	return out, nil
}

// Form encodes the payload as form fields. Lists become repeated keys.
func (r SearchRequest) Form() url.Values {
	form := url.Values{}
	for key, value := range r {
		switch v := value.(type) {
		case string:
			form.Set(key, v)
		case bool:
			form.Set(key, strconv.FormatBool(v))
		case int:
			form.Set(key, strconv.Itoa(v))
		case float64:
			form.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
		case []int:
			for _, id := range v {
				form.Add(key, strconv.Itoa(id))
			}
		default:
			form.Set(key, fmt.Sprint(v))
		}
	}
	return form
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}
