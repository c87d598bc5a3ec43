package viewmodel

import "strings"

// Brand holds the color tokens used to render a store.
type Brand struct {
	Strong string
	Light  string
}

type brandEntry struct {
	key   string
	brand Brand
}

// brands is matched in order; the first key contained in the store name wins.
var brands = []brandEntry{
	{"amazon", Brand{"#FF9900", "#FFF3E0"}},
	{"walmart", Brand{"#0071CE", "#E3F2FD"}},
	{"target", Brand{"#CC0000", "#FFEBEE"}},
	{"kroger", Brand{"#0F4C9F", "#E8EAF6"}},
	{"whole foods", Brand{"#00674B", "#E8F5E9"}},
	{"trader joe", Brand{"#BA0C2F", "#FCE4EC"}},
	{"sprouts", Brand{"#76A73B", "#F1F8E9"}},
	{"bestbuy", Brand{"#0046BE", "#FFF9C4"}},
	{"best buy", Brand{"#0046BE", "#FFF9C4"}},
	{"newegg", Brand{"#F7A21B", "#FFF8E1"}},
	{"microcenter", Brand{"#D11E2D", "#FFEBEE"}},
	{"apple", Brand{"#555555", "#F5F5F5"}},
	{"dell", Brand{"#007DB8", "#E1F5FE"}},
	{"lenovo", Brand{"#E2231A", "#FFEBEE"}},
	{"samsung", Brand{"#1428A0", "#E8EAF6"}},
	{"google", Brand{"#4285F4", "#E3F2FD"}},
	{"expedia", Brand{"#00355F", "#E3F2FD"}},
	{"booking", Brand{"#003580", "#E3F2FD"}},
	{"hotels", Brand{"#D32F2F", "#FFEBEE"}},
	{"kayak", Brand{"#FF690F", "#FFF3E0"}},
	{"airbnb", Brand{"#FF5A5F", "#FFEBEE"}},
	{"vanguard", Brand{"#96151D", "#FFEBEE"}},
	{"fidelity", Brand{"#368727", "#E8F5E9"}},
	{"schwab", Brand{"#00A0DF", "#E1F5FE"}},
	{"robinhood", Brand{"#00C805", "#E8F5E9"}},
	{"ishares", Brand{"#000000", "#EEEEEE"}},
}

// DefaultBrand is used for stores without a known brand.
var DefaultBrand = Brand{Strong: "#4B5563", Light: "#F3F4F6"}

// BrandFor resolves the brand colors of a store name.
func BrandFor(store string) Brand {
	name := strings.ToLower(store)
	if name == "" {
		return DefaultBrand
	}
	for _, b := range brands {
		if strings.Contains(name, b.key) {
			return b.brand
		}
	}
	return DefaultBrand
}

// BrandColor returns the strong color of a store, used for headers and buttons.
func BrandColor(store string) string {
	return BrandFor(store).Strong
}

// BrandLightColor returns the light color of a store, used for secondary surfaces.
func BrandLightColor(store string) string {
	return BrandFor(store).Light
}
