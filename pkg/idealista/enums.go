package idealista

// PropertyType is the kind of property searched for.
type PropertyType string

const (
	PropertyTypeHomes    PropertyType = "homes"
	PropertyTypeOffices  PropertyType = "offices"
	PropertyTypePremises PropertyType = "premises"
	PropertyTypeGarages  PropertyType = "garages"
	PropertyTypeBedrooms PropertyType = "bedrooms"
)

// Operation selects rentals or sales.
type Operation string

const (
	OperationRent Operation = "rent"
	OperationSale Operation = "sale"
)

// SinceDate restricts results by publication recency.
type SinceDate string

const (
	SinceLastWeek    SinceDate = "W"
	SinceLastMonth   SinceDate = "M"
	SinceLastDay     SinceDate = "T"
	SinceLastTwoDays SinceDate = "Y"
)

// Sort is the result ordering direction.
type Sort string

const (
	SortAscending  Sort = "asc"
	SortDescending Sort = "desc"
)

// symbolic name -> wire value
var (
	propertyTypeNames = map[string]PropertyType{
		"HOMES":    PropertyTypeHomes,
		"OFFICES":  PropertyTypeOffices,
		"PREMISES": PropertyTypePremises,
		"GARAGES":  PropertyTypeGarages,
		"BEDROOMS": PropertyTypeBedrooms,
	}
	operationNames = map[string]Operation{
		"RENT": OperationRent,
		"SALE": OperationSale,
	}
	sinceDateNames = map[string]SinceDate{
		"LAST_WEEK":     SinceLastWeek,
		"LAST_MONTH":    SinceLastMonth,
		"LAST_DAY":      SinceLastDay,
		"LAST_TWO_DAYS": SinceLastTwoDays,
	}
	sortNames = map[string]Sort{
		"ASCENDING":  SortAscending,
		"DESCENDING": SortDescending,
	}
)

// normalize accepts either a symbolic name or a wire value of a vocabulary.
func normalize[T ~string](field, value string, names map[string]T) (T, error) {
	if v, ok := names[value]; ok {
		return v, nil
	}
	for _, v := range names {
		if string(v) == value {
			return v, nil
		}
	}
	return "", newEnumError(field, value)
}

func nameOf[T ~string](value T, names map[string]T) string {
	for name, v := range names {
		if v == value {
			return name
		}
	}
	return ""
}

// ParsePropertyType accepts "HOMES" or "homes" and returns PropertyTypeHomes, and so on.
func ParsePropertyType(s string) (PropertyType, error) {
	return normalize("propertyType", s, propertyTypeNames)
}

// ParseOperation accepts "RENT"/"rent" or "SALE"/"sale".
func ParseOperation(s string) (Operation, error) {
	return normalize("operation", s, operationNames)
}

// ParseSinceDate accepts LAST_WEEK, LAST_MONTH, LAST_DAY, LAST_TWO_DAYS or their wire letters.
func ParseSinceDate(s string) (SinceDate, error) {
	return normalize("sinceDate", s, sinceDateNames)
}

// ParseSort accepts "ASCENDING"/"asc" or "DESCENDING"/"desc".
func ParseSort(s string) (Sort, error) {
	return normalize("sort", s, sortNames)
}

func (p PropertyType) String() string { return string(p) }
func (o Operation) String() string    { return string(o) }
func (s SinceDate) String() string    { return string(s) }
func (s Sort) String() string         { return string(s) }

// Name returns the symbolic name, or "" for an unknown value.
func (p PropertyType) Name() string { return nameOf(p, propertyTypeNames) }
func (o Operation) Name() string    { return nameOf(o, operationNames) }
func (s SinceDate) Name() string    { return nameOf(s, sinceDateNames) }
func (s Sort) Name() string         { return nameOf(s, sortNames) }
