package listing

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/housinglord/housing-lord/models"
)

var ErrInvalidFilter = errors.New("invalid listing filter")

// PriceRange is an inclusive price band
type PriceRange struct {
	Label string
	Min   float64
	Max   float64
}

// PriceRanges are the bands offered by the listing page
var PriceRanges = []PriceRange{
	{Label: "0-10000", Min: 0, Max: 10000},
	{Label: "10000-25000", Min: 10000, Max: 25000},
	{Label: "25000-50000", Min: 25000, Max: 50000},
	{Label: "50000+", Min: 50000, Max: math.Inf(1)},
}

// Filter narrows the public listing. Empty fields match everything. Build
// it with ParseFilter so the bedroom and price facets are compiled.
type Filter struct {
	Location       string
	PropertyType   string
	Bedrooms       string
	PriceRange     string
	Amenity        string
	TargetAudience string

	price    *PriceRange
	bedrooms int
	atLeast  bool
}

// ParseFilter reads the facets from a query string
func ParseFilter(v url.Values) (Filter, error) {
	f := Filter{
		Location:       strings.TrimSpace(v.Get("location")),
		PropertyType:   strings.TrimSpace(v.Get("propertyType")),
		Bedrooms:       strings.TrimSpace(v.Get("bedrooms")),
		PriceRange:     strings.TrimSpace(v.Get("priceRange")),
		Amenity:        strings.TrimSpace(v.Get("amenity")),
		TargetAudience: strings.TrimSpace(v.Get("targetAudience")),
	}

	if err := f.compile(); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func (f *Filter) compile() error {
	if f.PriceRange != "" {
		idx := slices.IndexFunc(PriceRanges, func(r PriceRange) bool {
			return r.Label == f.PriceRange
		})
		if idx < 0 {
			return fmt.Errorf("%w: unknown price range %q", ErrInvalidFilter, f.PriceRange)
		}

		f.price = &PriceRanges[idx]
	}

	if f.Bedrooms != "" {
		raw, atLeast := strings.CutSuffix(f.Bedrooms, "+")

		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: bedrooms %q", ErrInvalidFilter, f.Bedrooms)
		}

		f.bedrooms = n
		f.atLeast = atLeast
	}

	return nil
}

// Match reports whether p passes every set facet
func (f *Filter) Match(p *models.Property) bool {
	if f.Location != "" && (p.Location == nil || p.Location.City != f.Location) {
		return false
	}

	if f.PropertyType != "" && p.PropertyType != f.PropertyType {
		return false
	}

	if f.Bedrooms != "" {
		if f.atLeast && p.Bedrooms < f.bedrooms {
			return false
		}

		if !f.atLeast && p.Bedrooms != f.bedrooms {
			return false
		}
	}

	if f.price != nil && (p.Price < f.price.Min || p.Price > f.price.Max) {
		return false
	}

	if f.Amenity != "" && !slices.Contains(p.Amenities, f.Amenity) {
		return false
	}

	if f.TargetAudience != "" && !slices.Contains(p.TargetAudience, f.TargetAudience) {
		return false
	}

	return true
}

// Apply deduplicates properties by id and drops the ones that do not match.
// A repeated id keeps both the position and the value of its first
// occurrence; later copies are ignored even if their fields differ.
func (f *Filter) Apply(properties []models.Property) []models.Property {
	seen := make(map[string]struct{}, len(properties))
	ans := make([]models.Property, 0, len(properties))

	for i := range properties {
		p := &properties[i]

		if _, ok := seen[p.ID]; ok {
			continue
		}

		seen[p.ID] = struct{}{}

		if f.Match(p) {
			ans = append(ans, *p)
		}
	}

	return ans
}
